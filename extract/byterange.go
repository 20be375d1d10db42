package extract

import (
	"errors"
	"fmt"
	"io"
)

// SignedData returns a reader over the document bytes covered by the
// signature's byte ranges, presented as one continuous stream.
func (c *Container) SignedData() (io.Reader, error) {
	if len(c.ByteRange) == 0 || len(c.ByteRange)%2 != 0 {
		return nil, errors.New("invalid or missing ByteRange")
	}
	if c.field == nil || c.field.File == nil {
		return nil, errors.New("container has no backing file")
	}

	parts := make([]io.Reader, 0, len(c.ByteRange)/2)
	for i := 0; i < len(c.ByteRange); i += 2 {
		parts = append(parts, io.NewSectionReader(c.field.File, c.ByteRange[i], c.ByteRange[i+1]))
	}
	return io.MultiReader(parts...), nil
}

// SignedBytes reads the covered byte ranges into memory.
func (c *Container) SignedBytes() ([]byte, error) {
	r, err := c.SignedData()
	if err != nil {
		return nil, err
	}

	var total int64
	for i := 1; i < len(c.ByteRange); i += 2 {
		total += c.ByteRange[i]
	}

	content := make([]byte, total)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("failed to read signed content: %w", err)
	}
	return content, nil
}
