package fanbox

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Post body types as reported by the API's type discriminator.
const (
	TypeImage   = "image"
	TypeFile    = "file"
	TypeArticle = "article"
)

// Article block types.
const (
	BlockParagraph = "p"
	BlockHeader    = "header"
	BlockImage     = "image"
	BlockFile      = "file"
	BlockURLEmbed  = "url_embed"
)

// Body is the type-specific part of a post: *ImageBody, *FileBody, or
// *ArticleBody.
type Body interface {
	bodyType() string
}

// Image is an image attachment.
type Image struct {
	ID          string `json:"id"`
	Extension   string `json:"extension"`
	OriginalURL string `json:"originalUrl"`
}

// File is a non-image attachment.
type File struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

// ImageBody is a gallery post: free text plus ordered images.
type ImageBody struct {
	Text   string  `json:"text"`
	Images []Image `json:"images"`
}

// FileBody is a file post: free text plus ordered files.
type FileBody struct {
	Text  string `json:"text"`
	Files []File `json:"files"`
}

// Block is one element of an article.
type Block struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	ImageID    string `json:"imageId"`
	FileID     string `json:"fileId"`
	URLEmbedID string `json:"urlEmbedId"`
}

// ArticleBody is a rich-text post whose image and file blocks reference the maps.
type ArticleBody struct {
	Blocks   []Block          `json:"blocks"`
	ImageMap map[string]Image `json:"imageMap"`
	FileMap  map[string]File  `json:"fileMap"`
}

func (*ImageBody) bodyType() string   { return TypeImage }
func (*FileBody) bodyType() string    { return TypeFile }
func (*ArticleBody) bodyType() string { return TypeArticle }

// decodeBody selects the variant from the discriminator. A JSON null body
// decodes to nil so the caller can report the post as restricted.
func decodeBody(postType string, raw json.RawMessage) (Body, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var body Body
	switch postType {
	case TypeImage:
		body = &ImageBody{}
	case TypeFile:
		body = &FileBody{}
	case TypeArticle:
		body = &ArticleBody{}
	default:
		return nil, fmt.Errorf("unsupported post type %q", postType)
	}
	if err := json.Unmarshal(raw, body); err != nil {
		return nil, fmt.Errorf("decode %s body: %w", postType, err)
	}
	return body, nil
}
