package hash

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/crypto/blake2b"

	"github.com/eleven-am/govod/internal/domain"
)

const chunkSize = 1 << 20

type Hasher struct {
	logger hclog.Logger
}

func NewHasher(logger hclog.Logger) *Hasher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Hasher{logger: logger}
}

// HashFile returns the lowercase hex BLAKE2b-256 digest of the file at path.
func (h *Hasher) HashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.NewFailure(domain.KindHash, path, err)
	}
	defer f.Close()

	digest, err := HashReader(&ctxReader{ctx: ctx, r: f})
	if err != nil {
		return "", domain.NewFailure(domain.KindHash, path, fmt.Errorf("read: %w", err))
	}
	h.logger.Debug("hashed file", "path", path, "digest", digest)
	return digest, nil
}

// HashReader digests everything r yields.
func HashReader(r io.Reader) (string, error) {
	sum, _ := blake2b.New256(nil)
	if _, err := io.CopyBuffer(sum, r, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
