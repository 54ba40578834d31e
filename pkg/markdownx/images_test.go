package markdownx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteImages(t *testing.T) {
	t.Parallel()
	md := "# Doc\n![fig 1](images/fig1.png)\ntext ![](images/fig2.jpg)\n![ext](https://cdn.example.com/x.png)"

	out := RewriteImages(md, func(path string) (string, error) {
		if path == "images/fig2.jpg" {
			return "", errors.New("upload failed")
		}
		return "https://minio.local/bucket/" + path, nil
	})

	assert.Contains(t, out, `<img src="https://minio.local/bucket/images/fig1.png" alt="fig 1">`)
	// Failed uploads keep the original reference.
	assert.Contains(t, out, "![](images/fig2.jpg)")
	// Absolute URLs pass through untouched.
	assert.Contains(t, out, "![ext](https://cdn.example.com/x.png)")
}

func TestImagePaths(t *testing.T) {
	t.Parallel()
	md := "![a](img/a.png) ![b](img/b.png) ![a again](img/a.png) ![ext](http://x/y.png)"
	assert.Equal(t, []string{"img/a.png", "img/b.png"}, ImagePaths(md))
}
