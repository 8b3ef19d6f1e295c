package xmlenc

import (
	"context"

	"github.com/beevik/etree"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
	"github.com/kenneth/xmlenc-gateway/internal/resolver"
	"github.com/kenneth/xmlenc-gateway/internal/template"
)

// Decrypt parses encNode, resolves its key, and produces the plaintext
// via the CipherData Driver (C6). When Type is #Element or #Content and
// Ctx.IgnoreType is false, the decrypted XML replaces encNode in the
// document; any other Type leaves the tree untouched and the caller
// inspects Result.Buffer. resv may be nil if the template never uses
// CipherReference.
func Decrypt(ctx context.Context, c *Ctx, key []byte, encNode *etree.Element, resv *resolver.Resolver) (*Result, error) {
	idx := template.NewIDIndex()
	idx.Register(encNode)

	s, err := buildSession(ctx, c, encNode, chain.DirectionDecrypt, key, idx)
	if err != nil {
		return nil, err
	}
	defer s.destroy()

	if s.cipherDataNode == nil {
		c.logger().WithField("id", s.result.ID).Error("CipherData not located")
		return nil, newError(KindNodeNotFound, "CipherData not located", nil)
	}

	plaintext, err := readCipherData(ctx, s, resv)
	if err != nil {
		c.logger().WithError(err).WithField("id", s.result.ID).Error("reading CipherData")
		return nil, err
	}
	s.result.Buffer = plaintext

	if !c.IgnoreType {
		switch s.result.Type {
		case template.TypeElement:
			if err := template.ReplaceNodeFromElementBuffer(encNode, plaintext); err != nil {
				c.logger().WithError(err).Error("splicing decrypted element")
				return nil, newError(KindXMLOperationFailed, "splicing decrypted element", err)
			}
			s.result.Replaced = true
		case template.TypeContent:
			if err := template.ReplaceNodeWithContentBuffer(encNode, plaintext); err != nil {
				c.logger().WithError(err).Error("splicing decrypted content")
				return nil, newError(KindXMLOperationFailed, "splicing decrypted content", err)
			}
			s.result.Replaced = true
		default:
			// Unknown or absent Type: leave the tree untouched, per the
			// asymmetry with the encrypt path's InvalidType rejection.
		}
	}

	c.logger().WithField("id", s.result.ID).Debug("decryption complete")
	return s.result, nil
}
