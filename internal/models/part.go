package models

import (
	"strings"

	"github.com/customeros/replydesk/internal/enum"
)

// Part is one node of a message's MIME tree. Leaves carry encoded data, multiparts carry children.
type Part struct {
	Kind      enum.PartKind
	MediaType string
	Filename  string
	Encoding  enum.PartEncoding
	Data      string
	Children  []*Part
}

func NewLeaf(mediaType string, encoding enum.PartEncoding, data string) *Part {
	return &Part{
		Kind:      enum.PartLeaf,
		MediaType: strings.ToLower(mediaType),
		Encoding:  encoding,
		Data:      data,
	}
}

func NewMultipart(mediaType string, children ...*Part) *Part {
	return &Part{
		Kind:      enum.PartMultipart,
		MediaType: strings.ToLower(mediaType),
		Children:  children,
	}
}

func (p *Part) IsLeaf() bool {
	return p != nil && p.Kind == enum.PartLeaf
}

func (p *Part) IsMultipart() bool {
	return p != nil && p.Kind == enum.PartMultipart
}

// IsAttachment excludes named leaves from body extraction.
func (p *Part) IsAttachment() bool {
	return p.IsLeaf() && p.Filename != ""
}
