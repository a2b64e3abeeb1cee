package influx

import (
	"compress/gzip"
	"io"
	"net/http"
)

// ioCopy copies a request body, undoing gzip if the client compressed it
func ioCopy(dst io.Writer, r *http.Request) (int64, error) {
	var src io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return 0, err
		}
		defer zr.Close()
		src = zr
	}
	return io.Copy(dst, src)
}
