package replay

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Archive compresses a finished recording to path+".zst" and returns the
// archive path. The original file is left in place.
func Archive(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := path + ".zst"
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = out.Close()
		return "", err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	if _, err := io.Copy(bw, in); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return "", err
	}
	return dst, out.Close()
}

// Unarchive decompresses a .zst archive back into dstPath.
func Unarchive(archivePath, dstPath string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return err
	}
	defer dec.Close()

	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, dec.IOReadCloser()); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
