package template

import (
	"fmt"

	"github.com/beevik/etree"
)

// ReplaceNode replaces src in its parent's child list with replacement,
// preserving position. Used on encrypt (#Element: src → EncryptedData)
// and on decrypt (#Element: EncryptedData → parsed plaintext element).
func ReplaceNode(src, replacement *etree.Element) error {
	parent := src.Parent()
	if parent == nil {
		return fmt.Errorf("template: replace_node: %w: source has no parent", ErrInvalidNode)
	}
	next := nextSibling(parent, src)
	parent.RemoveChild(src)
	if next != nil {
		parent.InsertChild(next, replacement)
	} else {
		parent.AddChild(replacement)
	}
	return nil
}

// ReplaceContent replaces src's own children with newChildren, leaving
// src's tag/attributes untouched. Used for Type=#Content splicing on
// encrypt; decrypt's #Content splice goes through
// ReplaceNodeWithContentBuffer instead.
func ReplaceContent(src *etree.Element, newChildren []*etree.Element) {
	for _, c := range src.ChildElements() {
		src.RemoveChild(c)
	}
	for _, tok := range append([]etree.Token(nil), src.Child...) {
		if _, isElement := tok.(*etree.Element); !isElement {
			src.RemoveChild(tok)
		}
	}
	for _, c := range newChildren {
		src.AddChild(c)
	}
}

// ReplaceNodeWithContentBuffer parses buf as a synthetic root, extracts
// its children, and splices them into src's position in its parent,
// detaching src entirely. Used for #Content splicing where the plaintext
// buffer held the encrypted element's former children and must become a
// sibling run, not a single element. Deliberately separate from
// ReplaceNodeFromElementBuffer rather than sharing its code path.
func ReplaceNodeWithContentBuffer(src *etree.Element, buf []byte) error {
	children, err := parseFragmentChildren(buf)
	if err != nil {
		return err
	}
	parent := src.Parent()
	if parent == nil {
		return fmt.Errorf("template: replace_node_with_content_buffer: %w: source has no parent", ErrInvalidNode)
	}
	next := nextSibling(parent, src)
	parent.RemoveChild(src)
	for _, c := range children {
		if next != nil {
			parent.InsertChild(next, c)
		} else {
			parent.AddChild(c)
		}
	}
	return nil
}

// ReplaceNodeFromElementBuffer parses buf as a single XML element and
// replaces src with it (the #Element decrypt splice path).
func ReplaceNodeFromElementBuffer(src *etree.Element, buf []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(wrapFragment(buf)); err != nil {
		return fmt.Errorf("template: parsing plaintext as XML element: %w", err)
	}
	root := doc.Root()
	if root == nil || len(root.ChildElements()) != 1 {
		return fmt.Errorf("template: plaintext does not parse as a single XML element")
	}
	el := root.ChildElements()[0]
	root.RemoveChild(el)
	return ReplaceNode(src, el)
}

func parseFragmentChildren(buf []byte) ([]*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(wrapFragment(buf)); err != nil {
		return nil, fmt.Errorf("template: parsing plaintext as XML content: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}
	children := root.ChildElements()
	for _, c := range children {
		root.RemoveChild(c)
	}
	return children, nil
}

// wrapFragment wraps an arbitrary XML fragment (one element, or zero or
// more sibling elements) in a synthetic root so it parses as a single
// well-formed document regardless of how many top-level nodes it has.
func wrapFragment(buf []byte) []byte {
	out := make([]byte, 0, len(buf)+32)
	out = append(out, []byte("<xmlenc-fragment>")...)
	out = append(out, buf...)
	out = append(out, []byte("</xmlenc-fragment>")...)
	return out
}

// nextSibling returns the element immediately following child among
// parent's element children, or nil if child is last (or absent).
func nextSibling(parent *etree.Element, child *etree.Element) *etree.Element {
	siblings := parent.ChildElements()
	for i, c := range siblings {
		if c == child && i+1 < len(siblings) {
			return siblings[i+1]
		}
	}
	return nil
}
