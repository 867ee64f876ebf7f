package routes

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"stormneighbor-server/models"
)

func TestGetNearbyPostsValidation(t *testing.T) {
	setupTestStorage(t)
	app := buildTestApp(t)
	token := signTestToken("user")

	cases := []struct {
		name string
		url  string
	}{
		{"missing coordinates", "/api/posts/nearby"},
		{"latitude out of range", "/api/posts/nearby?lat=91&lng=0"},
		{"longitude out of range", "/api/posts/nearby?lat=0&lng=-181"},
		{"cityOnly without city", "/api/posts/nearby?lat=36.1&lng=-95.9&cityOnly=true"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		app.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.Code)
		}
	}
}

func TestGetNearbyPostsFeed(t *testing.T) {
	db := setupTestStorage(t)
	app := buildTestApp(t)

	author := models.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	if err := db.Create(&author).Error; err != nil {
		t.Fatalf("seed author: %v", err)
	}
	lat, lng := 37.1, -95.9
	posts := []models.Post{
		{AuthorID: author.ID, Title: "emergency", PostType: "safety", Priority: models.PriorityLow, IsEmergency: true},
		{AuthorID: author.ID, Title: "urgent", PostType: "safety", Priority: models.PriorityUrgent, Lat: &lat, Lng: &lng},
		{AuthorID: author.ID, Title: "chatter", PostType: "general", Priority: models.PriorityNormal},
		{AuthorID: author.ID, Title: "hidden", PostType: "general", Priority: models.PriorityNormal, IsRemoved: true},
	}
	for i := range posts {
		if err := db.Create(&posts[i]).Error; err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/posts/nearby?lat=36.1&lng=-95.9", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken("user"))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
		Posts   []struct {
			Title           string   `json:"title"`
			AuthorFirstName *string  `json:"authorFirstName"`
			AuthorLastName  *string  `json:"authorLastName"`
			DistanceMiles   *float64 `json:"distanceMiles"`
		} `json:"posts"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.Count != 3 {
		t.Fatalf("expected 3 visible posts, got %d", body.Count)
	}
	if body.Posts[0].Title != "emergency" || body.Posts[1].Title != "urgent" {
		t.Fatalf("feed not ordered by urgency: %+v", body.Posts)
	}

	// Every row must carry the read-time annotations in its JSON body.
	for _, p := range body.Posts {
		if p.Title == "hidden" {
			t.Fatal("removed post leaked into the feed")
		}
		if p.AuthorFirstName == nil || p.AuthorLastName == nil || p.DistanceMiles == nil {
			t.Fatalf("feed row %q missing author/distance fields: %s", p.Title, resp.Body.String())
		}
		if *p.AuthorFirstName != "Ada" || *p.AuthorLastName != "Lovelace" {
			t.Fatalf("feed row %q has wrong author: %s %s", p.Title, *p.AuthorFirstName, *p.AuthorLastName)
		}
	}

	// The row with a point is one degree of latitude from the query.
	if dist := *body.Posts[1].DistanceMiles; math.Abs(dist-69.0) > 1e-6 {
		t.Fatalf("urgent post distance = %v miles, want 69", dist)
	}
	if dist := *body.Posts[0].DistanceMiles; dist != 0 {
		t.Fatalf("post without a point reported distance %v, want 0", dist)
	}
}
