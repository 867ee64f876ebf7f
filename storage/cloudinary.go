package storage

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Cloudinary configuration via environment variables:
// CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY, CLOUDINARY_API_SECRET, CLOUDINARY_FOLDER (optional)

type cloudinaryConfig struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
}

func loadCloudinaryConfig() (*cloudinaryConfig, error) {
	cfg := &cloudinaryConfig{
		cloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		apiKey:    os.Getenv("CLOUDINARY_API_KEY"),
		apiSecret: os.Getenv("CLOUDINARY_API_SECRET"),
		folder:    os.Getenv("CLOUDINARY_FOLDER"),
	}
	if cfg.cloudName == "" || cfg.apiKey == "" || cfg.apiSecret == "" {
		return nil, fmt.Errorf("missing Cloudinary credentials in environment")
	}
	return cfg, nil
}

// sign produces the SHA1 signature Cloudinary expects for signed requests.
func (c *cloudinaryConfig) sign(publicID, timestamp string) string {
	payload := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, c.apiSecret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(payload)))
}

func (c *cloudinaryConfig) qualifiedPublicID(publicID string) string {
	if c.folder != "" {
		return c.folder + "/" + publicID
	}
	return publicID
}

// UploadBase64Image performs a signed upload of a base64 data URL (or raw
// base64 payload) and returns the hosted URL, or an error.
func UploadBase64Image(base64ImageSrc string, publicID string) (string, error) {
	if base64ImageSrc == "" {
		return "", fmt.Errorf("empty image payload")
	}

	cfg, err := loadCloudinaryConfig()
	if err != nil {
		return "", err
	}

	// Strip a data-URL prefix if present
	payload := base64ImageSrc
	if i := strings.Index(base64ImageSrc, ","); i != -1 {
		payload = base64ImageSrc[i+1:]
	}

	finalPublicID := cfg.qualifiedPublicID(publicID)
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	form := url.Values{}
	form.Add("file", "data:image/jpeg;base64,"+payload)
	form.Add("api_key", cfg.apiKey)
	form.Add("public_id", finalPublicID)
	form.Add("timestamp", timestamp)
	form.Add("signature", cfg.sign(finalPublicID, timestamp))

	endpoint := "https://api.cloudinary.com/v1_1/" + cfg.cloudName + "/image/upload"
	res, err := http.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		log.Printf("cloudinary upload failed: status %d body %s", res.StatusCode, string(body))
		return "", fmt.Errorf("cloudinary upload failed with status %d", res.StatusCode)
	}

	var cloudRes struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &cloudRes); err != nil {
		return "", err
	}
	if cloudRes.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", cloudRes.Error.Message)
	}

	hostedURL := cloudRes.SecureURL
	if hostedURL == "" {
		hostedURL = cloudRes.URL
	}
	if hostedURL == "" {
		return "", fmt.Errorf("cloudinary returned no URL")
	}
	return hostedURL, nil
}

// DeleteImage removes a previously uploaded image given its hosted URL.
func DeleteImage(imageURL string) error {
	if !strings.Contains(imageURL, "res.cloudinary.com") {
		return fmt.Errorf("not a Cloudinary URL: %s", imageURL)
	}

	cfg, err := loadCloudinaryConfig()
	if err != nil {
		return err
	}

	// URL format: .../image/upload/v{version}/{public_id}.{format}
	parts := strings.Split(imageURL, "/")
	last := parts[len(parts)-1]
	publicID := strings.Split(last, ".")[0]
	finalPublicID := cfg.qualifiedPublicID(publicID)

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form := url.Values{}
	form.Add("public_id", finalPublicID)
	form.Add("api_key", cfg.apiKey)
	form.Add("timestamp", timestamp)
	form.Add("signature", cfg.sign(finalPublicID, timestamp))

	endpoint := "https://api.cloudinary.com/v1_1/" + cfg.cloudName + "/image/destroy"
	res, err := http.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("cloudinary destroy failed with status %d", res.StatusCode)
	}

	var deleteRes struct {
		Result string `json:"result"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &deleteRes); err != nil {
		return err
	}
	if deleteRes.Error.Message != "" {
		return fmt.Errorf("cloudinary: %s", deleteRes.Error.Message)
	}
	if deleteRes.Result != "ok" {
		return fmt.Errorf("cloudinary destroy result: %s", deleteRes.Result)
	}
	return nil
}
