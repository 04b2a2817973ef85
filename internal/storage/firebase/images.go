package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/storage"
)

func (c *Client) bucketURL() string {
	return fmt.Sprintf("%s/v0/b/%s/o", c.storageURL, c.creds.StorageBucket)
}

type uploadResponse struct {
	Name           string `json:"name"`
	DownloadTokens string `json:"downloadTokens"`
}

type objectList struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
}

// UploadCarImage stores the image bytes under the admin user's namespace and
// returns a durable download URL.
func (c *Client) UploadCarImage(ctx context.Context, carID domain.ID, fileName string, data []byte) (string, error) {
	if err := c.requireAuth(); err != nil {
		return "", err
	}

	object := objectName(c.userID, carID, fileName)
	u := fmt.Sprintf("%s?uploadType=media&name=%s", c.bucketURL(), url.QueryEscape(object))

	respData, err := c.call(ctx, http.MethodPost, u, data, "image/"+objectExt(fileName))
	if err != nil {
		return "", err
	}

	var ur uploadResponse
	if err := json.Unmarshal(respData, &ur); err != nil {
		return "", fmt.Errorf("unexpected storage upload response: %w", err)
	}

	downloadURL := fmt.Sprintf("%s/%s?alt=media&token=%s", c.bucketURL(), url.PathEscape(object), ur.DownloadTokens)
	c.logger.Debug("image uploaded", "object", object)
	return downloadURL, nil
}

// DeleteImage removes a stored object given its download URL or object path.
func (c *Client) DeleteImage(ctx context.Context, ref string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	object := objectFromRef(ref)
	if object == "" {
		return &storage.NotFoundError{Resource: ref}
	}

	_, err := c.call(ctx, http.MethodDelete, c.bucketURL()+"/"+url.PathEscape(object), nil, "")
	return err
}

// deleteCarImages removes every stored object whose name starts with the
// car's ID. Used after car deletion; callers treat failures as best-effort.
func (c *Client) deleteCarImages(ctx context.Context, carID domain.ID) error {
	prefix := fmt.Sprintf("cars/%s/%s", c.userID, carID)
	data, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s?prefix=%s", c.bucketURL(), url.QueryEscape(prefix)), nil, "")
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}

	var list objectList
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("unexpected storage list response: %w", err)
	}

	for _, item := range list.Items {
		if _, err := c.call(ctx, http.MethodDelete, c.bucketURL()+"/"+url.PathEscape(item.Name), nil, ""); err != nil {
			return err
		}
	}
	return nil
}

// objectFromRef accepts either a bare object path or a full download URL and
// returns the object path.
func objectFromRef(ref string) string {
	if !strings.Contains(ref, "://") {
		return ref
	}
	_, after, found := strings.Cut(ref, "/o/")
	if !found {
		return ""
	}
	if i := strings.IndexByte(after, '?'); i >= 0 {
		after = after[:i]
	}
	object, err := url.PathUnescape(after)
	if err != nil {
		return ""
	}
	return object
}
