package speakerdeck

import (
	"encoding/binary"
	"fmt"

	"deckharvest/internal/paginate"

	"github.com/cespare/xxhash/v2"
)

// Account is the owner of a presentation.
type Account struct {
	Url  string
	Name string
}

func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Url == other.Url && a.Name == other.Name
}

func (a *Account) Hash() uint64 {
	digest := xxhash.New()
	a.writeHash(digest)
	return digest.Sum64()
}

func (a *Account) writeHash(digest *xxhash.Digest) {
	if a == nil {
		digest.Write([]byte{0})
		return
	}
	digest.Write([]byte{1})
	writeString(digest, a.Url)
	writeString(digest, a.Name)
}

func (a *Account) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Url)
}

// Presentation is a single listing entry.
type Presentation struct {
	// nil when the listing does not say who owns it
	Account    *Account
	Url        string
	Id         string
	Title      string
	SlideCount int
}

func (p Presentation) Equal(other Presentation) bool {
	return p.Account.Equal(other.Account) &&
		p.Url == other.Url &&
		p.Id == other.Id &&
		p.Title == other.Title &&
		p.SlideCount == other.SlideCount
}

func (p Presentation) Hash() uint64 {
	digest := xxhash.New()
	p.Account.writeHash(digest)
	writeString(digest, p.Url)
	writeString(digest, p.Id)
	writeString(digest, p.Title)

	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], uint64(p.SlideCount))
	digest.Write(count[:])
	return digest.Sum64()
}

func (p Presentation) String() string {
	return fmt.Sprintf(
		"%q [%s] %d slides by %s at %s",
		p.Title, p.Id, p.SlideCount, p.Account, p.Url,
	)
}

// length prefixed so that ("ab", "c") and ("a", "bc") hash differently
func writeString(digest *xxhash.Digest, s string) {
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(s)))
	digest.Write(length[:])
	digest.WriteString(s)
}

// PageResult is one crawled listing page.
type PageResult = paginate.Page[Presentation]
