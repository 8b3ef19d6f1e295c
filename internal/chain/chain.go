// Package chain implements the binary transform pipeline: a chain of
// opaque stages (codecs, ciphers, sinks) assembled head-to-tail and driven
// either by pushing bytes in at the head or pulling them out at the tail.
package chain

import "fmt"

// Kind distinguishes the transform families a Chain will accept. Only
// KindBinary transforms may be linked; XML/C14N-shaped transforms belong to
// a different pipeline entirely and are rejected here.
type Kind int

const (
	KindBinary Kind = iota
	KindXML
	KindC14N
)

// Direction selects whether a cipher-capable Transform runs forward
// (encrypt) or backward (decrypt). Transforms that don't care about
// direction (codecs, sinks) ignore it.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionEncrypt
	DirectionDecrypt
)

// Transform is the abstract capability set every chain link exposes. The
// chain operates only through this interface; it never knows which
// concrete stage (base64 codec, AES-GCM cipher, memory sink, URI source)
// it is holding.
//
// On the push discipline a stage's Write/Flush forwards its transformed
// output into whatever Transform was wired as its next stage via SetNext;
// a terminal sink simply accumulates instead of forwarding. On the pull
// discipline a stage's Read draws from the Transform wired as its prev
// stage via SetPrev.
type Transform interface {
	Kind() Kind

	// SetDirection configures an encrypt/decrypt-sensitive transform.
	// Must be called at most once, before the first Write/Read. Stages
	// that are direction-agnostic accept DirectionNone silently.
	SetDirection(d Direction) error

	// SetNext wires the downstream stage for the push discipline.
	SetNext(next Transform)
	// SetPrev wires the upstream stage for the pull discipline.
	SetPrev(prev Transform)

	// Write pushes bytes into this stage.
	Write(p []byte) (int, error)

	// Flush signals end-of-input on the push discipline. A stage
	// finalizes any buffered state (e.g. cipher padding) and forwards
	// its own flush downstream.
	Flush() error

	// Read pulls up to len(p) transformed bytes on the pull discipline.
	// Returns (0, io.EOF) once exhausted.
	Read(p []byte) (int, error)

	// Close releases any resources the stage holds (key material,
	// open file descriptors). Close is idempotent.
	Close() error
}

var ErrInvalidTransform = fmt.Errorf("non-binary transform offered to chain")

// link is one node of the chain's internal singly-linked representation.
// The original source uses a prev/next doubly-linked list owned jointly by
// neighboring nodes; per the design notes we reimplement as a singly-linked
// list traversed by the Chain itself — no transform needs a back-pointer
// that crosses a chain boundary, only the push/pull wiring above.
type link struct {
	t    Transform
	next *link
}

// Chain is an ordered sequence of Transforms, driven by exactly one of the
// two disciplines (push or pull) for its entire lifetime. The chain owns
// every link; Destroy tears down every stage.
type Chain struct {
	head *link
	tail *link
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{}
}

// Empty reports whether the chain currently holds no transforms.
func (c *Chain) Empty() bool {
	return c.head == nil
}

// AddTail inserts t after the current tail, wiring it as the new terminal
// stage. Rejects non-binary transforms.
func (c *Chain) AddTail(t Transform) error {
	if t.Kind() != KindBinary {
		return fmt.Errorf("chain: add_tail: %w", ErrInvalidTransform)
	}
	l := &link{t: t}
	if c.tail == nil {
		c.head = l
		c.tail = l
		return nil
	}
	c.tail.t.SetNext(t)
	t.SetPrev(c.tail.t)
	c.tail.next = l
	c.tail = l
	return nil
}

// AddHead inserts t before the current head, wiring it as the new initial
// stage. Rejects non-binary transforms.
func (c *Chain) AddHead(t Transform) error {
	if t.Kind() != KindBinary {
		return fmt.Errorf("chain: add_head: %w", ErrInvalidTransform)
	}
	l := &link{t: t}
	if c.head == nil {
		c.head = l
		c.tail = l
		return nil
	}
	t.SetNext(c.head.t)
	c.head.t.SetPrev(t)
	l.next = c.head
	c.head = l
	return nil
}

// Transforms returns the chain's stages in head-to-tail order.
// internal/xmlenc uses it to find an encrypt chain's terminal sink.
func (c *Chain) Transforms() []Transform {
	var out []Transform
	for l := c.head; l != nil; l = l.next {
		out = append(out, l.t)
	}
	return out
}

// Write pushes bytes into the head of the chain; each stage forwards its
// transformed output to the next via the wiring AddHead/AddTail installed.
func (c *Chain) Write(p []byte) (int, error) {
	if c.head == nil {
		return 0, fmt.Errorf("chain: write on empty chain")
	}
	return c.head.t.Write(p)
}

// Flush finalizes the push discipline, cascading through every stage to
// the terminal sink.
func (c *Chain) Flush() error {
	if c.head == nil {
		return nil
	}
	return c.head.t.Flush()
}

// Read pulls bytes from the tail of the chain on the pull discipline.
func (c *Chain) Read(p []byte) (int, error) {
	if c.tail == nil {
		return 0, fmt.Errorf("chain: read on empty chain")
	}
	return c.tail.t.Read(p)
}

// Destroy closes every transform in the chain and empties it. Safe to call
// on an empty or already-destroyed chain.
func (c *Chain) Destroy() error {
	var first error
	for l := c.head; l != nil; l = l.next {
		if err := l.t.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.head = nil
	c.tail = nil
	return first
}
