// Package template provides the pure-construction DOM helpers that build
// well-formed EncryptedData skeletons: EncryptionMethod, KeyInfo,
// CipherData/CipherValue|CipherReference, EncryptionProperties, and
// CipherReference/Transforms.
//
// DOM manipulation is done with github.com/beevik/etree, which supports
// the splice/replace/reorder XML work that encoding/xml struct tags
// cannot express.
package template

import (
	"fmt"

	"github.com/beevik/etree"
)

// Namespaces used throughout the wire format.
const (
	NSXMLEnc = "http://www.w3.org/2001/04/xmlenc#"
	NSXMLDSig = "http://www.w3.org/2000/09/xmldsig#"
)

// Type attribute values recognized for splicing purposes.
const (
	TypeElement = NSXMLEnc + "Element"
	TypeContent = NSXMLEnc + "Content"
)

// schema-mandated child order of EncryptedData.
var encryptedDataOrder = []string{"EncryptionMethod", "KeyInfo", "CipherData", "EncryptionProperties"}

// NewEncryptedData creates a bare <EncryptedData> element with a
// <CipherData> child pre-attached. id/typ/mimeType/encoding are optional;
// pass "" to omit an attribute.
func NewEncryptedData(id, typ, mimeType, encoding string) *etree.Element {
	el := etree.NewElement("EncryptedData")
	el.Space = ""
	el.CreateAttr("xmlns", NSXMLEnc)
	setOptionalAttr(el, "Id", id)
	setOptionalAttr(el, "Type", typ)
	setOptionalAttr(el, "MimeType", mimeType)
	setOptionalAttr(el, "Encoding", encoding)

	cd := etree.NewElement("CipherData")
	el.AddChild(cd)
	return el
}

func setOptionalAttr(el *etree.Element, name, value string) {
	if value != "" {
		el.CreateAttr(name, value)
	}
}

// childIndex returns the schema-order rank of tag, or -1 if unrecognized.
func childIndex(tag string) int {
	for i, t := range encryptedDataOrder {
		if t == tag {
			return i
		}
	}
	return -1
}

// insertInOrder inserts child into parent at the position schema order
// dictates, regardless of what order callers invoke the builder helpers
// in.
func insertInOrder(parent *etree.Element, child *etree.Element) {
	rank := childIndex(child.Tag)
	if rank < 0 {
		parent.AddChild(child)
		return
	}

	var insertBefore *etree.Element
	for _, existing := range parent.ChildElements() {
		if childIndex(existing.Tag) > rank {
			insertBefore = existing
			break
		}
	}
	if insertBefore == nil {
		parent.AddChild(child)
		return
	}
	parent.InsertChild(insertBefore, child)
}

// childNamed returns the direct child element of parent named tag, or nil.
func childNamed(parent *etree.Element, tag string) *etree.Element {
	for _, c := range parent.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ErrNodeAlreadyPresent and ErrNodeNotFound are sentinel causes that
// internal/xmlenc wraps with its own Kind-tagged Error type so callers
// see a single taxonomy regardless of which package detected the
// violation.
var (
	ErrNodeAlreadyPresent = fmt.Errorf("node already present")
	ErrNodeNotFound       = fmt.Errorf("node not found")
	ErrInvalidNode        = fmt.Errorf("invalid node")
)

// AddEncryptionMethod attaches <EncryptionMethod Algorithm="algID"/> to
// encData, rejecting a duplicate.
func AddEncryptionMethod(encData *etree.Element, algID string) (*etree.Element, error) {
	if encData.Tag != "EncryptedData" {
		return nil, fmt.Errorf("template: add_encryption_method: %w", ErrInvalidNode)
	}
	if childNamed(encData, "EncryptionMethod") != nil {
		return nil, fmt.Errorf("template: add_encryption_method: %w", ErrNodeAlreadyPresent)
	}
	el := etree.NewElement("EncryptionMethod")
	el.CreateAttr("Algorithm", algID)
	insertInOrder(encData, el)
	return el, nil
}

// AddKeyInfo attaches a dsig-namespaced <KeyInfo/> to encData.
func AddKeyInfo(encData *etree.Element) (*etree.Element, error) {
	if encData.Tag != "EncryptedData" {
		return nil, fmt.Errorf("template: add_key_info: %w", ErrInvalidNode)
	}
	if childNamed(encData, "KeyInfo") != nil {
		return nil, fmt.Errorf("template: add_key_info: %w", ErrNodeAlreadyPresent)
	}
	el := etree.NewElement("KeyInfo")
	el.CreateAttr("xmlns:ds", NSXMLDSig)
	el.Space = "ds"
	insertInOrder(encData, el)
	return el, nil
}

// AddEncryptionProperties attaches <EncryptionProperties Id?/> to encData.
func AddEncryptionProperties(encData *etree.Element, id string) (*etree.Element, error) {
	if encData.Tag != "EncryptedData" {
		return nil, fmt.Errorf("template: add_encryption_properties: %w", ErrInvalidNode)
	}
	if childNamed(encData, "EncryptionProperties") != nil {
		return nil, fmt.Errorf("template: add_encryption_properties: %w", ErrNodeAlreadyPresent)
	}
	el := etree.NewElement("EncryptionProperties")
	setOptionalAttr(el, "Id", id)
	insertInOrder(encData, el)
	return el, nil
}

// AddEncryptionProperty attaches <EncryptionProperty Id? Target?> under
// EncryptionProperties, auto-creating the parent if absent.
func AddEncryptionProperty(encData *etree.Element, id, target string) (*etree.Element, error) {
	props := childNamed(encData, "EncryptionProperties")
	if props == nil {
		var err error
		props, err = AddEncryptionProperties(encData, "")
		if err != nil {
			return nil, err
		}
	}
	el := etree.NewElement("EncryptionProperty")
	setOptionalAttr(el, "Id", id)
	setOptionalAttr(el, "Target", target)
	props.AddChild(el)
	return el, nil
}

// CipherData returns encData's CipherData child, which NewEncryptedData
// always pre-attaches.
func CipherData(encData *etree.Element) (*etree.Element, error) {
	cd := childNamed(encData, "CipherData")
	if cd == nil {
		return nil, fmt.Errorf("template: cipher_data: %w", ErrNodeNotFound)
	}
	return cd, nil
}

// AddCipherValue attaches <CipherValue/> to a CipherData element. Fails if
// a CipherReference is already present — the two are mutually exclusive.
func AddCipherValue(cipherData *etree.Element) (*etree.Element, error) {
	if cipherData.Tag != "CipherData" {
		return nil, fmt.Errorf("template: add_cipher_value: %w", ErrInvalidNode)
	}
	if childNamed(cipherData, "CipherReference") != nil {
		return nil, fmt.Errorf("template: add_cipher_value: %w", ErrNodeAlreadyPresent)
	}
	if childNamed(cipherData, "CipherValue") != nil {
		return nil, fmt.Errorf("template: add_cipher_value: %w", ErrNodeAlreadyPresent)
	}
	el := etree.NewElement("CipherValue")
	cipherData.AddChild(el)
	return el, nil
}

// AddCipherReference attaches <CipherReference URI="uri"?/> to a
// CipherData element. Fails if a CipherValue is already present.
func AddCipherReference(cipherData *etree.Element, uri string) (*etree.Element, error) {
	if cipherData.Tag != "CipherData" {
		return nil, fmt.Errorf("template: add_cipher_reference: %w", ErrInvalidNode)
	}
	if childNamed(cipherData, "CipherValue") != nil {
		return nil, fmt.Errorf("template: add_cipher_reference: %w", ErrNodeAlreadyPresent)
	}
	if childNamed(cipherData, "CipherReference") != nil {
		return nil, fmt.Errorf("template: add_cipher_reference: %w", ErrNodeAlreadyPresent)
	}
	el := etree.NewElement("CipherReference")
	setOptionalAttr(el, "URI", uri)
	cipherData.AddChild(el)
	return el, nil
}

// AddTransform attaches <ds:Transform Algorithm="algID"/> under
// CipherReference/Transforms, auto-creating Transforms if absent.
func AddTransform(cipherRef *etree.Element, algID string) (*etree.Element, error) {
	if cipherRef.Tag != "CipherReference" {
		return nil, fmt.Errorf("template: add_transform: %w", ErrInvalidNode)
	}
	transforms := childNamed(cipherRef, "Transforms")
	if transforms == nil {
		transforms = etree.NewElement("Transforms")
		transforms.CreateAttr("xmlns:ds", NSXMLDSig)
		cipherRef.AddChild(transforms)
	}
	el := etree.NewElement("ds:Transform")
	el.CreateAttr("Algorithm", algID)
	transforms.AddChild(el)
	return el, nil
}
