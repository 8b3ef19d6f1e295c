package xmlenc

import (
	"context"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"

	"github.com/kenneth/xmlenc-gateway/internal/cipher"
	"github.com/kenneth/xmlenc-gateway/internal/template"
)

func newEncNode(t *testing.T, algID, typ string) *etree.Element {
	t.Helper()
	el := template.NewEncryptedData("e1", typ, "", "")
	_, err := template.AddEncryptionMethod(el, algID)
	require.NoError(t, err)
	return el
}

func TestEncryptMemoryDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}

	encNode := newEncNode(t, cipher.AlgAES128CBC, template.TypeElement)
	ctx := &Ctx{IgnoreType: true}

	res, err := EncryptMemory(context.Background(), ctx, key, encNode, []byte("hello world"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Buffer)

	cv := encNode.FindElement("CipherData/CipherValue")
	require.NotNil(t, cv)
	require.NotEmpty(t, cv.Text())

	decNode := encNode.Copy()
	decRes, err := Decrypt(context.Background(), ctx, key, decNode, nil)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(decRes.Buffer))
}

func TestEncryptXMLNodeElementSplice(t *testing.T) {
	key := make([]byte, 32)
	encNode := newEncNode(t, cipher.AlgAES256GCM, template.TypeElement)

	doc := etree.NewDocument()
	root := doc.CreateElement("Root")
	src := root.CreateElement("Secret")
	src.SetText("classified")

	ctx := &Ctx{}
	res, err := EncryptXMLNode(context.Background(), ctx, key, encNode, src)
	require.NoError(t, err)
	require.True(t, res.Replaced)

	require.Nil(t, root.FindElement("Secret"))
	spliced := root.FindElement("EncryptedData")
	require.NotNil(t, spliced)

	decRes, err := Decrypt(context.Background(), ctx, key, spliced, nil)
	require.NoError(t, err)
	require.True(t, decRes.Replaced)

	restored := root.FindElement("Secret")
	require.NotNil(t, restored)
	require.Equal(t, "classified", restored.Text())
}

func TestEncryptXMLNodeContentSplice(t *testing.T) {
	key := make([]byte, 24)
	encNode := newEncNode(t, cipher.AlgAES192CBC, template.TypeContent)

	doc := etree.NewDocument()
	root := doc.CreateElement("Root")
	src := root.CreateElement("Wrapper")
	src.CreateElement("a")
	src.CreateElement("b")

	ctx := &Ctx{}
	res, err := EncryptXMLNode(context.Background(), ctx, key, encNode, src)
	require.NoError(t, err)
	require.True(t, res.Replaced)
	require.Len(t, src.ChildElements(), 1)
	require.Equal(t, "EncryptedData", src.ChildElements()[0].Tag)

	spliced := src.ChildElements()[0]
	decRes, err := Decrypt(context.Background(), ctx, key, spliced, nil)
	require.NoError(t, err)
	require.True(t, decRes.Replaced)

	var tags []string
	for _, c := range src.ChildElements() {
		tags = append(tags, c.Tag)
	}
	require.Equal(t, []string{"a", "b"}, tags)
}

func TestEncryptMemoryMissingMethodFails(t *testing.T) {
	el := template.NewEncryptedData("", "", "", "")
	ctx := &Ctx{}
	_, err := EncryptMemory(context.Background(), ctx, []byte("0123456789abcdef"), el, []byte("x"))
	require.Error(t, err)
	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	require.Equal(t, KindInvalidData, xerr.Kind)
}

func TestEncryptMemoryNoKeyNoManagerFails(t *testing.T) {
	encNode := newEncNode(t, cipher.AlgAES128CBC, template.TypeElement)
	ctx := &Ctx{}
	_, err := EncryptMemory(context.Background(), ctx, nil, encNode, []byte("x"))
	require.Error(t, err)
	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	require.Equal(t, KindKeyNotFound, xerr.Kind)
}

func TestDecryptCipherReferenceFragment(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}

	// Produce a base64 ciphertext blob the way a normal CipherValue
	// encrypt would, then stash it under a same-document Id instead of
	// inline, referencing it via a "#id" CipherReference whose base64
	// Transform decodes it before decryption.
	srcNode := newEncNode(t, cipher.AlgAES128CBC, template.TypeElement)
	ctx := &Ctx{IgnoreType: true}
	_, err := EncryptMemory(context.Background(), ctx, key, srcNode, []byte("fragment secret"))
	require.NoError(t, err)
	ciphertextB64 := srcNode.FindElement("CipherData/CipherValue").Text()

	refNode := newEncNode(t, cipher.AlgAES128CBC, template.TypeElement)
	cd, err := template.CipherData(refNode)
	require.NoError(t, err)
	ref, err := template.AddCipherReference(cd, "#stash")
	require.NoError(t, err)
	_, err = template.AddTransform(ref, template.NSXMLDSig+"base64")
	require.NoError(t, err)
	_, err = template.AddEncryptionProperties(refNode, "")
	require.NoError(t, err)
	prop, err := template.AddEncryptionProperty(refNode, "stash", "")
	require.NoError(t, err)
	prop.SetText(ciphertextB64)

	decRes, err := Decrypt(context.Background(), ctx, key, refNode, nil)
	require.NoError(t, err)
	require.Equal(t, "fragment secret", string(decRes.Buffer))
}

func TestDecryptCipherReferenceFragmentMissingFails(t *testing.T) {
	key := make([]byte, 16)
	refNode := newEncNode(t, cipher.AlgAES128CBC, template.TypeElement)
	cd, err := template.CipherData(refNode)
	require.NoError(t, err)
	_, err = template.AddCipherReference(cd, "#missing")
	require.NoError(t, err)

	ctx := &Ctx{}
	_, err = Decrypt(context.Background(), ctx, key, refNode, nil)
	require.Error(t, err)
	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	require.Equal(t, KindNodeNotFound, xerr.Kind)
}

func TestDecryptUnknownTypeLeavesTreeUntouched(t *testing.T) {
	key := make([]byte, 16)
	encNode := newEncNode(t, cipher.AlgAES128CBC, "")
	encNode.CreateAttr("Type", "http://example.org/unknown-type")

	ctx := &Ctx{}
	res, err := EncryptMemory(context.Background(), ctx, key, encNode, []byte("payload"))
	require.NoError(t, err)
	require.NotNil(t, res)

	decRes, err := Decrypt(context.Background(), ctx, key, encNode, nil)
	require.NoError(t, err)
	require.False(t, decRes.Replaced)
	require.Equal(t, "payload", string(decRes.Buffer))
}
