package xmlenc

import (
	"bytes"
	"context"
	"io"

	"github.com/beevik/etree"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
	"github.com/kenneth/xmlenc-gateway/internal/cipher"
	"github.com/kenneth/xmlenc-gateway/internal/template"
)

// EncryptMemory encrypts plaintext into encNode's CipherData. key may be
// nil, in which case Ctx.KeyManager resolves one. This is the Encryption
// Session's (C3) memory-source entry point.
func EncryptMemory(ctx context.Context, c *Ctx, key []byte, encNode *etree.Element, plaintext []byte) (*Result, error) {
	idx := template.NewIDIndex()
	idx.Register(encNode)

	s, err := buildSession(ctx, c, encNode, chain.DirectionEncrypt, key, idx)
	if err != nil {
		return nil, err
	}
	defer s.destroy()

	sink, ok := lastTransform(s.chain).(*cipher.MemSink)
	if !ok {
		return nil, newError(KindTransformInternal, "encrypt chain did not end in a mem sink", nil)
	}

	if _, err := s.chain.Write(plaintext); err != nil {
		c.logger().WithError(err).Error("writing plaintext through chain")
		return nil, newError(KindTransformInternal, "writing plaintext through chain", err)
	}
	if err := s.chain.Flush(); err != nil {
		c.logger().WithError(err).Error("flushing encrypt chain")
		return nil, newError(KindTransformInternal, "flushing chain", err)
	}

	if err := writeCipherData(s.cipherDataNode, sink.Bytes()); err != nil {
		return nil, err
	}

	s.result.Buffer = sink.Bytes()
	c.logger().WithField("id", s.result.ID).Debug("memory encryption complete")
	return s.result, nil
}

// EncryptURI encrypts the bytes read from r, the caller's already-opened
// source for a URI. The source is drained into memory through a URISource
// pull-transform before being pushed through the encrypt chain — the
// engine buffers one element at a time regardless of how its plaintext
// was sourced.
func EncryptURI(ctx context.Context, c *Ctx, key []byte, encNode *etree.Element, r io.Reader) (*Result, error) {
	idx := template.NewIDIndex()
	idx.Register(encNode)

	src := cipher.NewURISource(r)
	plaintext, err := io.ReadAll(pullReader{src})
	if err != nil {
		c.logger().WithError(err).Error("draining URI source")
		return nil, newError(KindTransformInternal, "draining URI source", err)
	}
	src.Close()

	s, err := buildSession(ctx, c, encNode, chain.DirectionEncrypt, key, idx)
	if err != nil {
		return nil, err
	}
	defer s.destroy()

	sink, ok := lastTransform(s.chain).(*cipher.MemSink)
	if !ok {
		return nil, newError(KindTransformInternal, "encrypt chain did not end in a mem sink", nil)
	}

	if _, err := s.chain.Write(plaintext); err != nil {
		return nil, newError(KindTransformInternal, "writing plaintext through chain", err)
	}
	if err := s.chain.Flush(); err != nil {
		return nil, newError(KindTransformInternal, "flushing chain", err)
	}

	if err := writeCipherData(s.cipherDataNode, sink.Bytes()); err != nil {
		return nil, err
	}

	s.result.Buffer = sink.Bytes()
	c.logger().WithField("id", s.result.ID).Debug("URI encryption complete")
	return s.result, nil
}

// pullReader adapts a chain.Transform's pull-discipline Read to the
// io.Reader interface so io.ReadAll can drain it.
type pullReader struct {
	t *cipher.URISource
}

func (p pullReader) Read(buf []byte) (int, error) { return p.t.Read(buf) }

// EncryptXMLNode serializes srcNode (or its children, per Type) and
// encrypts that serialization, optionally splicing EncryptedData over
// srcNode's former position.
func EncryptXMLNode(ctx context.Context, c *Ctx, key []byte, encNode *etree.Element, srcNode *etree.Element) (*Result, error) {
	idx := template.NewIDIndex()
	idx.Register(encNode)

	plaintext, err := serializeBySourceType(c, encNode, srcNode)
	if err != nil {
		return nil, err
	}

	s, err := buildSession(ctx, c, encNode, chain.DirectionEncrypt, key, idx)
	if err != nil {
		return nil, err
	}
	defer s.destroy()

	sink, ok := lastTransform(s.chain).(*cipher.MemSink)
	if !ok {
		return nil, newError(KindTransformInternal, "encrypt chain did not end in a mem sink", nil)
	}

	if _, err := s.chain.Write(plaintext); err != nil {
		return nil, newError(KindTransformInternal, "writing plaintext through chain", err)
	}
	if err := s.chain.Flush(); err != nil {
		return nil, newError(KindTransformInternal, "flushing chain", err)
	}

	if err := writeCipherData(s.cipherDataNode, sink.Bytes()); err != nil {
		return nil, err
	}
	s.result.Buffer = sink.Bytes()

	if !c.IgnoreType {
		switch s.result.Type {
		case template.TypeElement, "":
			if err := template.ReplaceNode(srcNode, encNode); err != nil {
				c.logger().WithError(err).Error("splicing EncryptedData over srcNode")
				return nil, newError(KindXMLOperationFailed, "splicing EncryptedData over srcNode", err)
			}
			s.result.Replaced = true
		case template.TypeContent:
			template.ReplaceContent(srcNode, []*etree.Element{encNode})
			s.result.Replaced = true
		}
	}

	c.logger().WithField("id", s.result.ID).Debug("XML node encryption complete")
	return s.result, nil
}

// serializeBySourceType renders srcNode to octets per Type semantics:
// a single subtree dump for #Element (or unset/ignoreType), or the
// concatenation of each child's dump for #Content.
func serializeBySourceType(c *Ctx, encNode *etree.Element, srcNode *etree.Element) ([]byte, error) {
	typ := encNode.SelectAttrValue("Type", "")

	if typ == template.TypeElement || typ == "" || c.IgnoreType {
		return serializeElement(srcNode)
	}
	if typ == template.TypeContent {
		var buf bytes.Buffer
		for _, child := range srcNode.ChildElements() {
			b, err := serializeElement(child)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		return buf.Bytes(), nil
	}
	return nil, newError(KindInvalidType, "unrecognized Type attribute: "+typ, nil)
}

func serializeElement(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, newError(KindXMLOperationFailed, "serializing XML node", err)
	}
	return buf.Bytes(), nil
}

func lastTransform(c *chain.Chain) chain.Transform {
	ts := c.Transforms()
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}
