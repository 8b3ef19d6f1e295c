package template

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptedDataHasCipherDataChild(t *testing.T) {
	el := NewEncryptedData("e1", TypeElement, "text/plain", "")
	cd, err := CipherData(el)
	require.NoError(t, err)
	require.Equal(t, "CipherData", cd.Tag)
	require.Equal(t, "e1", el.SelectAttrValue("Id", ""))
}

func TestBuildersPreserveSchemaOrderRegardlessOfInsertionOrder(t *testing.T) {
	el := NewEncryptedData("", "", "", "")
	_, err := AddEncryptionProperties(el, "")
	require.NoError(t, err)
	_, err = AddKeyInfo(el)
	require.NoError(t, err)
	_, err = AddEncryptionMethod(el, "http://www.w3.org/2001/04/xmlenc#aes128-cbc")
	require.NoError(t, err)

	var tags []string
	for _, c := range el.ChildElements() {
		tags = append(tags, c.Tag)
	}
	require.Equal(t, []string{"EncryptionMethod", "KeyInfo", "CipherData", "EncryptionProperties"}, tags)
}

func TestCipherValueAndCipherReferenceAreMutuallyExclusive(t *testing.T) {
	el := NewEncryptedData("", "", "", "")
	cd, err := CipherData(el)
	require.NoError(t, err)

	_, err = AddCipherValue(cd)
	require.NoError(t, err)

	_, err = AddCipherReference(cd, "http://example.org/ct")
	require.ErrorIs(t, err, ErrNodeAlreadyPresent)
}

func TestDuplicateCipherValueRejected(t *testing.T) {
	el := NewEncryptedData("", "", "", "")
	cd, err := CipherData(el)
	require.NoError(t, err)

	_, err = AddCipherValue(cd)
	require.NoError(t, err)

	_, err = AddCipherValue(cd)
	require.ErrorIs(t, err, ErrNodeAlreadyPresent)
}

func TestDuplicateEncryptionMethodRejected(t *testing.T) {
	el := NewEncryptedData("", "", "", "")
	_, err := AddEncryptionMethod(el, "alg1")
	require.NoError(t, err)
	_, err = AddEncryptionMethod(el, "alg2")
	require.ErrorIs(t, err, ErrNodeAlreadyPresent)
}

func TestAddTransformAutoCreatesTransforms(t *testing.T) {
	el := NewEncryptedData("", "", "", "")
	cd, _ := CipherData(el)
	ref, err := AddCipherReference(cd, "http://example.org/ct")
	require.NoError(t, err)

	_, err = AddTransform(ref, "http://www.w3.org/2000/09/xmldsig#base64")
	require.NoError(t, err)

	transforms := ref.SelectElement("Transforms")
	require.NotNil(t, transforms)
	require.Len(t, transforms.ChildElements(), 1)
}

func TestIDIndexRegisterAndResolve(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Root")
	encData := NewEncryptedData("e1", "", "", "")
	root.AddChild(encData)

	idx := NewIDIndex()
	idx.Register(root)

	found, ok := idx.Resolve("e1")
	require.True(t, ok)
	require.Same(t, encData, found)

	resolved, err := idx.ResolveURI("#e1")
	require.NoError(t, err)
	require.Same(t, encData, resolved)
}

func TestReplaceNodePreservesPosition(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Root")
	root.CreateElement("a")
	src := root.CreateElement("b")
	root.CreateElement("c")

	replacement := etree.NewElement("EncryptedData")
	require.NoError(t, ReplaceNode(src, replacement))

	var tags []string
	for _, c := range root.ChildElements() {
		tags = append(tags, c.Tag)
	}
	require.Equal(t, []string{"a", "EncryptedData", "c"}, tags)
}

func TestReplaceContentReplacesChildrenOnly(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Root")
	src := root.CreateElement("Wrapper")
	src.CreateAttr("keep", "me")
	src.CreateElement("old")

	newChild := etree.NewElement("new")
	ReplaceContent(src, []*etree.Element{newChild})

	require.Equal(t, "me", src.SelectAttrValue("keep", ""))
	require.Len(t, src.ChildElements(), 1)
	require.Equal(t, "new", src.ChildElements()[0].Tag)
}
