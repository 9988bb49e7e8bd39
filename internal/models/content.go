package models

import (
	"fmt"
)

// ContentKind 评论可挂载的内容类型
type ContentKind string

const (
	ContentPoll    ContentKind = "poll"
	ContentComment ContentKind = "comment"
)

// ContentRef identifies the object a comment, bookmark or notification points at.
type ContentRef struct {
	Kind ContentKind
	ID   uint
}

func PollRef(id uint) ContentRef    { return ContentRef{Kind: ContentPoll, ID: id} }
func CommentRef(id uint) ContentRef { return ContentRef{Kind: ContentComment, ID: id} }

// ParseContentRef resolves the kind string once at the API boundary.
func ParseContentRef(kind string, id uint) (ContentRef, error) {
	switch ContentKind(kind) {
	case ContentPoll, ContentComment:
	default:
		return ContentRef{}, fmt.Errorf("unsupported content type %q", kind)
	}
	if id == 0 {
		return ContentRef{}, fmt.Errorf("invalid %s id", kind)
	}
	return ContentRef{Kind: ContentKind(kind), ID: id}, nil
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func (r ContentRef) IsZero() bool {
	return r.Kind == "" || r.ID == 0
}
