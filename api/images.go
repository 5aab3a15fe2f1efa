package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/jrsteele09/deepsight-client/client"
	"github.com/jrsteele09/deepsight-client/internal/errors"
)

const (
	pathImages          = "/user/image/"
	pathImageUpload     = "/user/image/upload/"
	pathProcessedImages = "/user/processedimage/"
	pathModels          = "/models/"

	uploadField = "image"
)

func imagePath(id int) string {
	return fmt.Sprintf("%s%d/", pathImages, id)
}

func processedImagePath(id int) string {
	return fmt.Sprintf("%s%d/", pathProcessedImages, id)
}

func (c *Client) Images(ctx context.Context) ([]Image, error) {
	var images []Image
	if _, err := c.doEnvelope(ctx, pathImages, getRequest(), &images); err != nil {
		return nil, err
	}
	return images, nil
}

// Image downloads the bytes of an uploaded image.
func (c *Client) Image(ctx context.Context, id int) ([]byte, error) {
	res, err := c.do(ctx, imagePath(id), getRequest())
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// UploadImage sends the image as multipart form data under the "image" field.
func (c *Client) UploadImage(ctx context.Context, name string, r io.Reader) (*Image, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(uploadField, filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("multipart.CreateFormFile: %w", err)
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s is empty", errors.ErrMissingField, name)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart.Close: %w", err)
	}

	opts := client.DefaultRequest()
	opts.Method = http.MethodPost
	opts.Body = buf.Bytes()
	opts.AttachJSON = false
	opts.Header = http.Header{"Content-Type": {mw.FormDataContentType()}}

	var img Image
	if _, err := c.doEnvelope(ctx, pathImageUpload, opts, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

func (c *Client) DeleteImage(ctx context.Context, id int) error {
	_, err := c.doEnvelope(ctx, imagePath(id), deleteRequest(), nil)
	return err
}

// Process runs model modelID over image imageID and returns the output bytes.
func (c *Client) Process(ctx context.Context, imageID, modelID int) ([]byte, error) {
	opts := client.DefaultRequest()
	opts.Method = http.MethodPost

	res, err := c.do(ctx, fmt.Sprintf("%s%d/process/%d/", pathImages, imageID, modelID), opts)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) ProcessedImages(ctx context.Context) ([]ProcessedImage, error) {
	var processed []ProcessedImage
	if _, err := c.doEnvelope(ctx, pathProcessedImages, getRequest(), &processed); err != nil {
		return nil, err
	}
	return processed, nil
}

// ProcessedImage downloads the bytes of a processed image.
func (c *Client) ProcessedImage(ctx context.Context, id int) ([]byte, error) {
	res, err := c.do(ctx, processedImagePath(id), getRequest())
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) DeleteProcessedImage(ctx context.Context, id int) error {
	_, err := c.doEnvelope(ctx, processedImagePath(id), deleteRequest(), nil)
	return err
}

// Models lists the available models. The route is public, so neither bearer
// nor anti-forgery token is sent.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var models []Model
	if _, err := c.doEnvelope(ctx, pathModels, client.RequestOptions{Method: http.MethodGet}, &models); err != nil {
		return nil, err
	}
	return models, nil
}

func (c *Client) Model(ctx context.Context, id int) (*Model, error) {
	var m Model
	if _, err := c.doEnvelope(ctx, fmt.Sprintf("%s%d/", pathModels, id), client.RequestOptions{Method: http.MethodGet}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
