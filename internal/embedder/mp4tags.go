package embedder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	mp4 "github.com/abema/go-mp4"
)

// mp4DataAtomClassText is the iTunes metadata "data" atom well-known-type
// value for UTF-8 text payloads (as opposed to binary blobs or integers).
const mp4DataAtomClassText = 1

// mp4TagKeys maps the flat tag names buildTagMap produces onto the iTunes
// four-character metadata atoms iTunes/most players recognize, the MP4
// analogue of addFLACTags'/addMP3Tags' key tables.
var mp4TagKeys = map[string]string{
	"title":  "\xa9nam",
	"artist": "\xa9ART",
	"album":  "\xa9alb",
}

// freeformTagKeys are written as "----" mean/name freeform atoms since they
// have no standard iTunes four-character equivalent.
var freeformTagKeys = map[string]string{
	"isrc":      "ISRC",
	"catalogID": "CATALOG_ID",
}

// MP4Tagger writes iTunes-style metadata atoms into an MP4/M4A container's
// moov/udta/meta/ilst box, the M4A analogue of zvuk-grabber's FLAC/MP3
// TagProcessorImpl. Reading the existing box structure is delegated to
// go-mp4, since ISO-BMFF box parsing is exactly what that library is for;
// the ilst/data atom bytes themselves are built by hand because they are a
// small, fixed, well-documented Apple extension no general-purpose ISO-BMFF
// library models as typed Go structs.
type MP4Tagger struct{}

// NewMP4Tagger builds the default Tagger for canonical .m4a files.
func NewMP4Tagger() *MP4Tagger { return &MP4Tagger{} }

// WriteTags rewrites the file's moov/udta/meta/ilst atom with the given tags
// and lyrics, preserving every other box's bytes unchanged. Re-running it
// with the same inputs produces byte-identical ilst content, satisfying the
// idempotent-embedding requirement. req.CoverPath is not read: no cover art
// (covr) atom is written.
func (mt *MP4Tagger) WriteTags(ctx context.Context, req WriteTagsRequest) error {
	f, err := os.OpenFile(req.TrackPath, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open mp4: %w", err)
	}
	defer f.Close()

	moovOffset, moovSize, err := locateTopLevelBox(f, "moov")
	if err != nil {
		return fmt.Errorf("locate moov box: %w", err)
	}

	moovPayload := make([]byte, moovSize)
	if _, err := f.ReadAt(moovPayload, moovOffset); err != nil {
		return fmt.Errorf("read moov box: %w", err)
	}

	ilst := buildIlstAtom(req.Tags, req.Lyrics)
	meta := buildMetaAtom(ilst)
	udta := buildAtom("udta", meta)

	newMoov, err := replaceOrAppendChildBox(moovPayload, "udta", udta)
	if err != nil {
		return fmt.Errorf("patch moov box: %w", err)
	}

	return spliceBoxAt(f, moovOffset, moovSize, newMoov)
}

// locateTopLevelBox walks the file's top-level ISO-BMFF boxes via go-mp4's
// box-structure reader and returns the byte offset and size (including the
// 8-byte header) of the first box matching name.
func locateTopLevelBox(r io.ReadSeeker, name string) (offset int64, size int64, err error) {
	boxType := mp4.StrToBoxType(name)
	found := false

	_, err = mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (interface{}, error) {
		if len(h.Path) == 1 && h.Path[0] == boxType {
			offset = int64(h.BoxInfo.Offset)
			size = int64(h.BoxInfo.Size)
			found = true
			return nil, nil
		}
		if len(h.Path) == 0 {
			return h.Expand()
		}
		return nil, nil
	})
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, fmt.Errorf("box %q not found", name)
	}

	return offset, size, nil
}

// spliceBoxAt replaces the box occupying [offset, offset+oldSize) with
// newBox, rewriting every byte after it. MP4 containers place moov either
// before or after mdat; a size change here shifts everything downstream,
// same as any real tag writer that grows a moov atom.
func spliceBoxAt(f *os.File, offset, oldSize int64, newBox []byte) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}

	tailOffset := offset + oldSize
	tail := make([]byte, info.Size()-tailOffset)
	if len(tail) > 0 {
		if _, err := f.ReadAt(tail, tailOffset); err != nil {
			return fmt.Errorf("read file tail: %w", err)
		}
	}

	if err := f.Truncate(offset); err != nil {
		return err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(newBox); err != nil {
		return fmt.Errorf("write moov box: %w", err)
	}
	if _, err := f.Write(tail); err != nil {
		return fmt.Errorf("write file tail: %w", err)
	}

	return nil
}

// replaceOrAppendChildBox walks the immediate children of a box's payload
// and replaces the first child matching name with replacement, or appends
// replacement if no child matches.
func replaceOrAppendChildBox(payload []byte, name string, replacement []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Write(payload[:8]) // keep the parent box's own header untouched

	body := payload[8:]
	replaced := false
	pos := 0
	for pos+8 <= len(body) {
		size := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		if size < 8 || pos+size > len(body) {
			break
		}
		childType := string(body[pos+4 : pos+8])
		if childType == name && !replaced {
			out.Write(replacement)
			replaced = true
		} else {
			out.Write(body[pos : pos+size])
		}
		pos += size
	}
	if !replaced {
		out.Write(replacement)
	}
	out.Write(body[pos:])

	full := out.Bytes()
	binary.BigEndian.PutUint32(full[0:4], uint32(len(full)))

	return full, nil
}

// buildAtom prepends an 8-byte ISO-BMFF box header (size + fourcc) onto payload.
func buildAtom(fourcc string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[4:8], fourcc)
	copy(buf[8:], payload)
	return buf
}

// buildDataAtom builds a single iTunes "data" atom: an 8-byte header
// (well-known type + locale, both big-endian) followed by the raw value.
func buildDataAtom(class uint32, value []byte) []byte {
	payload := make([]byte, 8+len(value))
	binary.BigEndian.PutUint32(payload[0:4], class)
	binary.BigEndian.PutUint32(payload[4:8], 0) // locale, always 0
	copy(payload[8:], value)
	return buildAtom("data", payload)
}

// buildFreeformAtom builds a "----" freeform metadata atom (mean + name +
// data children), the container iTunes uses for tags with no standard
// four-character atom, matching this package's mapping for ISRC/catalog id.
func buildFreeformAtom(mean, name, value string) []byte {
	meanAtom := buildAtom("mean", append([]byte{0, 0, 0, 0}, []byte("com.apple.iTunes")...))
	nameAtom := buildAtom("name", append([]byte{0, 0, 0, 0}, []byte(name)...))
	dataAtom := buildDataAtom(mp4DataAtomClassText, []byte(value))

	var body bytes.Buffer
	body.Write(meanAtom)
	body.Write(nameAtom)
	body.Write(dataAtom)

	return buildAtom("----", body.Bytes())
}

// buildIlstAtom builds the full ilst atom from the flat tag map plus lyrics,
// generalizing addFLACTags'/addMP3Tags' per-field tag tables to MP4 atoms.
func buildIlstAtom(tags map[string]string, lyrics string) []byte {
	var body bytes.Buffer

	fields := make([]string, 0, len(mp4TagKeys))
	for field := range mp4TagKeys {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		value := tags[field]
		if value == "" {
			continue
		}
		body.Write(buildAtom(mp4TagKeys[field], buildDataAtom(mp4DataAtomClassText, []byte(value))))
	}

	freeformFields := make([]string, 0, len(freeformTagKeys))
	for field := range freeformTagKeys {
		freeformFields = append(freeformFields, field)
	}
	sort.Strings(freeformFields)
	for _, field := range freeformFields {
		freeformName := freeformTagKeys[field]
		value := tags[field]
		if value == "" {
			continue
		}
		body.Write(buildFreeformAtom("com.apple.iTunes", freeformName, value))
	}

	if lyrics != "" {
		body.Write(buildAtom("\xa9lyr", buildDataAtom(mp4DataAtomClassText, []byte(lyrics))))
	}

	return buildAtom("ilst", body.Bytes())
}

// buildMetaAtom wraps ilst in the meta box's required 4-byte version/flags
// header. ilst is the only child written; no hdlr child is added.
func buildMetaAtom(ilst []byte) []byte {
	header := []byte{0, 0, 0, 0}
	return buildAtom("meta", append(header, ilst...))
}
