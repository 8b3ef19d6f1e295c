package xmlenc

import (
	"context"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
	"github.com/kenneth/xmlenc-gateway/internal/cipher"
	"github.com/kenneth/xmlenc-gateway/internal/keymanager"
	"github.com/kenneth/xmlenc-gateway/internal/template"
)

// session is the transient per-operation state tying the EncryptedData
// template, its transform chain, and the in-progress Result together.
// This is the spec's "EncState".
type session struct {
	ctx             *Ctx
	direction       chain.Direction
	chain           *chain.Chain
	cipherTransform cipher.CipherTransform
	cipherDataNode  *etree.Element
	keyInfoNode     *etree.Element
	typ             string
	result          *Result
	idIndex         *template.IDIndex
}

// buildSession walks encNode's children in schema order, installing the
// cipher transform, resolving its key, and locating CipherData. This is
// the EncryptedData Driver (C5). ids is the caller's Id index (already
// registered against encNode's tree) so that same-document "#id"
// CipherReference URIs can resolve without a resolver backend.
func buildSession(ctx context.Context, c *Ctx, encNode *etree.Element, dir chain.Direction, key []byte, ids *template.IDIndex) (*session, error) {
	if encNode.Tag != "EncryptedData" {
		return nil, newError(KindInvalidNode, "encNode is not an EncryptedData element", nil)
	}

	res := &Result{
		ID:       encNode.SelectAttrValue("Id", ""),
		Type:     encNode.SelectAttrValue("Type", ""),
		MimeType: encNode.SelectAttrValue("MimeType", ""),
		Encoding: encNode.SelectAttrValue("Encoding", ""),
		Encrypt:  dir == chain.DirectionEncrypt,
		Node:     encNode,
	}

	s := &session{ctx: c, direction: dir, chain: chain.New(), typ: res.Type, result: res, idIndex: ids}

	children := encNode.ChildElements()
	idx := 0

	var algID string
	if idx < len(children) && children[idx].Tag == "EncryptionMethod" {
		algID = children[idx].SelectAttrValue("Algorithm", "")
		idx++
	} else if c.EncryptionMethod != "" {
		algID = c.EncryptionMethod
		if _, err := template.AddEncryptionMethod(encNode, algID); err != nil {
			return nil, newError(KindXMLOperationFailed, "inserting default EncryptionMethod", err)
		}
	} else {
		return nil, newError(KindInvalidData, "no EncryptionMethod in template and no Ctx default", nil)
	}

	ct, err := cipher.Create(algID)
	if err != nil {
		c.logger().WithError(err).WithField("algorithm", algID).Error("instantiating cipher transform")
		return nil, newError(KindInvalidData, "instantiating transform for "+algID, err)
	}
	if err := ct.SetDirection(dir); err != nil {
		return nil, newError(KindTransformInternal, "setting transform direction", err)
	}
	if err := s.chain.AddTail(ct); err != nil {
		return nil, newError(KindInvalidTransform, "appending cipher transform", err)
	}
	s.cipherTransform = ct
	res.EncryptionMethod = algID

	if idx < len(children) && children[idx].Tag == "KeyInfo" {
		s.keyInfoNode = children[idx]
		idx++
	}

	if err := s.resolveKey(ctx, key, ct.Descriptor()); err != nil {
		return nil, err
	}

	if idx >= len(children) || children[idx].Tag != "CipherData" {
		return nil, newError(KindInvalidNode, "expected CipherData at this position", nil)
	}
	s.cipherDataNode = children[idx]
	idx++

	if idx < len(children) && children[idx].Tag == "EncryptionProperties" {
		idx++
	}

	if dir == chain.DirectionEncrypt {
		if err := s.chain.AddTail(cipher.NewBase64Encoder()); err != nil {
			return nil, newError(KindInvalidTransform, "appending base64 encoder", err)
		}
		if err := s.chain.AddTail(cipher.NewMemSink()); err != nil {
			return nil, newError(KindInvalidTransform, "appending mem sink", err)
		}
	}

	c.logger().WithFields(logrus.Fields{
		"direction": directionLabel(dir),
		"algorithm": algID,
		"id":        res.ID,
		"type":      res.Type,
	}).Debug("session built")

	return s, nil
}

func (s *session) resolveKey(ctx context.Context, key []byte, desc cipher.Descriptor) error {
	if key != nil {
		owned := append([]byte(nil), key...)
		s.result.Key = owned
		if err := s.cipherTransform.SetKey(owned); err != nil {
			return newError(KindInvalidData, "installing supplied key", err)
		}
		if s.direction == chain.DirectionEncrypt && s.keyInfoNode != nil {
			writeKeyInfo(s.keyInfoNode, desc)
		}
		return nil
	}

	if s.ctx.KeyManager == nil {
		s.ctx.logger().Error("no key supplied and no key manager configured")
		return newError(KindKeyNotFound, "no key supplied and no key manager configured", nil)
	}

	usage := keymanager.UsageEncrypt
	keyType := desc.KeyTypeEnc
	if s.direction == chain.DirectionDecrypt {
		usage = keymanager.UsageDecrypt
		keyType = desc.KeyTypeDec
	}

	hint := keymanager.Hint{
		KeyType: keyType.String(),
		Usage:   usage,
		KeyInfo: keyInfoText(s.keyInfoNode),
	}
	resolved, err := s.ctx.KeyManager(ctx, hint)
	if err != nil || resolved == nil {
		s.ctx.logger().WithError(err).WithField("key_type", hint.KeyType).Error("key manager did not return a key")
		return newError(KindKeyNotFound, "key manager did not return a key", err)
	}
	s.result.Key = resolved
	if err := s.cipherTransform.SetKey(resolved); err != nil {
		return newError(KindInvalidData, "installing resolved key", err)
	}

	if s.direction == chain.DirectionEncrypt && s.keyInfoNode != nil {
		writeKeyInfo(s.keyInfoNode, desc)
	}
	return nil
}

// writeKeyInfo serializes a minimal description of the effective key
// onto the KeyInfo node, for encrypt operations where KeyInfo was
// already present in the template.
func writeKeyInfo(keyInfoNode *etree.Element, desc cipher.Descriptor) {
	if keyInfoNode.SelectElement("KeyName") != nil {
		return
	}
	name := keyInfoNode.CreateElement("KeyName")
	name.SetText(desc.Algorithm)
}

func keyInfoText(keyInfoNode *etree.Element) string {
	if keyInfoNode == nil {
		return ""
	}
	doc := etree.NewDocument()
	doc.SetRoot(keyInfoNode.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// destroy tears down the chain, closing every transform. It does not call
// Result.Destroy: the Result is returned to the caller on success and
// dropped on error.
func (s *session) destroy() {
	s.chain.Destroy()
}

func directionLabel(dir chain.Direction) string {
	switch dir {
	case chain.DirectionEncrypt:
		return "encrypt"
	case chain.DirectionDecrypt:
		return "decrypt"
	default:
		return "none"
	}
}
