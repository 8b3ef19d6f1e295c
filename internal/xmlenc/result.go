package xmlenc

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Result is the user-visible record of one encrypt or decrypt operation.
type Result struct {
	ID               string
	Type             string
	MimeType         string
	Encoding         string
	EncryptionMethod string
	Key              []byte
	Buffer           []byte
	Replaced         bool
	Encrypt          bool
	Node             *etree.Element
}

// Destroy zeroizes the key and drops references to owned buffers. Safe
// to call more than once.
func (r *Result) Destroy() {
	for i := range r.Key {
		r.Key[i] = 0
	}
	r.Key = nil
	r.Buffer = nil
}

// DebugDump renders every field as a human-readable summary; Key and
// Buffer appear as their lengths and Node as its tag name.
func (r *Result) DebugDump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Result{\n")
	fmt.Fprintf(&b, "  Id: %q\n", r.ID)
	fmt.Fprintf(&b, "  Type: %q\n", r.Type)
	fmt.Fprintf(&b, "  MimeType: %q\n", r.MimeType)
	fmt.Fprintf(&b, "  Encoding: %q\n", r.Encoding)
	fmt.Fprintf(&b, "  EncryptionMethod: %q\n", r.EncryptionMethod)
	fmt.Fprintf(&b, "  KeyLen: %d\n", len(r.Key))
	fmt.Fprintf(&b, "  BufferLen: %d\n", len(r.Buffer))
	fmt.Fprintf(&b, "  Replaced: %t\n", r.Replaced)
	fmt.Fprintf(&b, "  Encrypt: %t\n", r.Encrypt)
	if r.Node != nil {
		fmt.Fprintf(&b, "  Node: <%s>\n", r.Node.Tag)
	}
	fmt.Fprintf(&b, "}")
	return b.String()
}

// DebugXMLDump renders the same fields framed as an XML comment-style
// diagnostic block, suitable for embedding alongside the EncryptedData
// tree in logs.
func (r *Result) DebugXMLDump() string {
	var b strings.Builder
	b.WriteString("<!-- xmlenc:result")
	fmt.Fprintf(&b, " id=%q type=%q mimeType=%q encoding=%q", r.ID, r.Type, r.MimeType, r.Encoding)
	fmt.Fprintf(&b, " encryptionMethod=%q keyLen=%d bufferLen=%d replaced=%t encrypt=%t",
		r.EncryptionMethod, len(r.Key), len(r.Buffer), r.Replaced, r.Encrypt)
	if r.Node != nil {
		fmt.Fprintf(&b, " node=%q", r.Node.Tag)
	}
	b.WriteString(" -->")
	return b.String()
}
