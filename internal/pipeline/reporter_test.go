package pipeline_test

import (
	"context"

	"fanboxed/internal/fanbox"
)

type reporterFunc func(id fanbox.PostID, err error)

func (f reporterFunc) Report(_ context.Context, id fanbox.PostID, err error) { f(id, err) }
