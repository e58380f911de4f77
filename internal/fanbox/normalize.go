package fanbox

import (
	"fmt"
	"strings"

	"fanboxed/internal/textutil"
)

// normalized is the description text and ordered asset URLs derived from a body.
type normalized struct {
	description string
	assets      []string
}

func normalizeBody(body Body, includeFiles bool) (normalized, error) {
	switch b := body.(type) {
	case *ImageBody:
		return normalizeImage(b), nil
	case *FileBody:
		return normalizeFile(b, includeFiles), nil
	case *ArticleBody:
		return normalizeArticle(b, includeFiles)
	default:
		return normalized{}, fmt.Errorf("unsupported post body %T", body)
	}
}

func normalizeImage(b *ImageBody) normalized {
	out := normalized{description: textutil.CollapseBlankLines(b.Text)}
	for _, img := range b.Images {
		if img.OriginalURL != "" {
			out.assets = append(out.assets, img.OriginalURL)
		}
	}
	return out
}

func normalizeFile(b *FileBody, includeFiles bool) normalized {
	out := normalized{description: textutil.CollapseBlankLines(b.Text)}
	if !includeFiles {
		return out
	}
	for _, f := range b.Files {
		if f.URL != "" {
			out.assets = append(out.assets, f.URL)
		}
	}
	return out
}

// normalizeArticle walks the blocks in order. Headers get a blank line above
// them; paragraphs are emitted as-is. Image and file blocks resolve through
// the maps; url embeds contribute nothing.
func normalizeArticle(b *ArticleBody, includeFiles bool) (normalized, error) {
	var text strings.Builder
	var out normalized
	for i, block := range b.Blocks {
		switch block.Type {
		case BlockHeader:
			text.WriteString("\n")
			text.WriteString(block.Text)
			text.WriteString("\n")
		case BlockParagraph:
			text.WriteString(block.Text)
			text.WriteString("\n")
		case BlockImage:
			img, ok := b.ImageMap[block.ImageID]
			if !ok || img.OriginalURL == "" {
				return normalized{}, fmt.Errorf("block %d references unknown image %q", i, block.ImageID)
			}
			out.assets = append(out.assets, img.OriginalURL)
		case BlockFile:
			if !includeFiles {
				continue
			}
			f, ok := b.FileMap[block.FileID]
			if !ok || f.URL == "" {
				return normalized{}, fmt.Errorf("block %d references unknown file %q", i, block.FileID)
			}
			out.assets = append(out.assets, f.URL)
		}
	}
	out.description = textutil.CollapseBlankLines(text.String())
	return out, nil
}
