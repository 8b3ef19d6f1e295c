package template

import (
	"fmt"
	"sync"

	"github.com/beevik/etree"
)

// IDAttr is the attribute name the original xmlsec implementation
// registers as a document-level ID (xmlSecEncIds = {"Id", NULL} in
// original_source/src/xmlenc.c) — we follow that single-attribute-name
// convention rather than inventing a generalized ID-attribute list.
const IDAttr = "Id"

// IDIndex is a document-wide index from "Id" attribute value to element,
// standing in for libxml2's xmlAddID bookkeeping. Id attributes must be
// registered before the transform chain runs, so that URI "#id"
// references (CipherReference/KeyInfo RetrievalMethod) resolve against
// the same document.
type IDIndex struct {
	mu    sync.RWMutex
	byID  map[string]*etree.Element
}

// NewIDIndex returns an empty index.
func NewIDIndex() *IDIndex {
	return &IDIndex{byID: make(map[string]*etree.Element)}
}

// Register walks el and every descendant, adding any Id attribute found to
// the index. Mirrors xmlAddIDs(doc, encNode, ids) being called once per
// EncryptedData before the driver proceeds.
func (idx *IDIndex) Register(el *etree.Element) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.registerLocked(el)
}

func (idx *IDIndex) registerLocked(el *etree.Element) {
	if id := el.SelectAttrValue(IDAttr, ""); id != "" {
		idx.byID[id] = el
	}
	for _, child := range el.ChildElements() {
		idx.registerLocked(child)
	}
}

// Resolve looks up an element by its registered Id value.
func (idx *IDIndex) Resolve(id string) (*etree.Element, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	el, ok := idx.byID[id]
	return el, ok
}

// ResolveURI resolves a same-document fragment URI of the form "#id"
// against the index; any other form is not this index's concern (the
// resolver package handles data:/file:/http(s):/s3: schemes).
func (idx *IDIndex) ResolveURI(uri string) (*etree.Element, error) {
	if len(uri) < 2 || uri[0] != '#' {
		return nil, fmt.Errorf("template: %q is not a fragment reference", uri)
	}
	el, ok := idx.Resolve(uri[1:])
	if !ok {
		return nil, fmt.Errorf("template: no element registered with Id %q", uri[1:])
	}
	return el, nil
}
