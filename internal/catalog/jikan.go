package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// JikanClient talks to the Jikan REST API (api.jikan.moe style).
type JikanClient struct {
	BaseURL string
	Client  *http.Client
}

func NewJikanClient(baseURL string) *JikanClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &JikanClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Jikan wire types. Only the fields we map are declared; everything else in
// the payload is ignored.
type animeEnvelope struct {
	Data animePayload `json:"data"`
}

type animePayload struct {
	MalID        int64      `json:"mal_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	TitleEnglish *string    `json:"title_english"`
	Images       imageSet   `json:"images"`
	Episodes     *int64     `json:"episodes"`
	Synopsis     string     `json:"synopsis"`
	Genres       []genreRef `json:"genres"`
	Year         *int       `json:"year"`
	Aired        airedInfo  `json:"aired"`
}

type imageSet struct {
	JPG  imageVariant `json:"jpg"`
	WebP imageVariant `json:"webp"`
}

type imageVariant struct {
	ImageURL string `json:"image_url"`
}

type genreRef struct {
	Name string `json:"name"`
}

type airedInfo struct {
	Prop airedProp `json:"prop"`
}

type airedProp struct {
	From airedDate `json:"from"`
}

type airedDate struct {
	Year *int `json:"year"`
}

// transformAnime maps a Jikan payload onto the canonical record: english
// title preferred over the native one, webp image over jpg, nested genre
// objects flattened, year taken from the aired range when the flat field
// is missing. Absent optionals stay absent.
func transformAnime(p animePayload) Anime {
	title := p.Title
	if p.TitleEnglish != nil && *p.TitleEnglish != "" {
		title = *p.TitleEnglish
	}

	image := p.Images.WebP.ImageURL
	if image == "" {
		image = p.Images.JPG.ImageURL
	}

	genres := make([]string, 0, len(p.Genres))
	for _, g := range p.Genres {
		genres = append(genres, g.Name)
	}

	year := p.Year
	if year == nil {
		year = p.Aired.Prop.From.Year
	}

	return Anime{
		MalID:    p.MalID,
		Title:    title,
		ImageURL: image,
		Episodes: p.Episodes,
		Synopsis: p.Synopsis,
		URL:      p.URL,
		Genres:   genres,
		Year:     year,
	}
}

// FetchAnime retrieves a single title by MAL id.
func (c *JikanClient) FetchAnime(ctx context.Context, malID int64) (Anime, error) {
	var env animeEnvelope
	if err := c.getJSON(ctx, fmt.Sprintf("%s/anime/%d", c.BaseURL, malID), &env); err != nil {
		return Anime{}, err
	}
	return transformAnime(env.Data), nil
}

// AnimePreview is the trimmed record shape used by browse, random and
// recommendation listings.
type AnimePreview struct {
	MalID    int64  `json:"mal_id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// SearchPage carries one page of upstream browse results plus the
// upstream's own pagination counters.
type SearchPage struct {
	Items      []AnimePreview
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

type searchEnvelope struct {
	Data       []animePayload `json:"data"`
	Pagination struct {
		CurrentPage     int `json:"current_page"`
		LastVisiblePage int `json:"last_visible_page"`
		Items           struct {
			PerPage int `json:"per_page"`
			Total   int `json:"total"`
		} `json:"items"`
	} `json:"pagination"`
}

// SearchAnime browses the upstream catalog, optionally filtered by a free
// text query. Pagination is owned by the upstream here.
func (c *JikanClient) SearchAnime(ctx context.Context, page int, query string) (SearchPage, error) {
	if page <= 0 {
		page = 1
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if query != "" {
		q.Set("q", query)
	}

	var env searchEnvelope
	if err := c.getJSON(ctx, c.BaseURL+"/anime?"+q.Encode(), &env); err != nil {
		return SearchPage{}, err
	}

	items := make([]AnimePreview, 0, len(env.Data))
	for _, p := range env.Data {
		a := transformAnime(p)
		items = append(items, AnimePreview{MalID: a.MalID, Title: a.Title, ImageURL: a.ImageURL})
	}

	return SearchPage{
		Items:      items,
		Page:       env.Pagination.CurrentPage,
		PerPage:    env.Pagination.Items.PerPage,
		Total:      env.Pagination.Items.Total,
		TotalPages: env.Pagination.LastVisiblePage,
	}, nil
}

// RandomAnime returns one random title.
func (c *JikanClient) RandomAnime(ctx context.Context) (Anime, error) {
	var env animeEnvelope
	if err := c.getJSON(ctx, c.BaseURL+"/random/anime", &env); err != nil {
		return Anime{}, err
	}
	return transformAnime(env.Data), nil
}

type recommendationsEnvelope struct {
	Data []struct {
		Entry struct {
			MalID  int64    `json:"mal_id"`
			URL    string   `json:"url"`
			Title  string   `json:"title"`
			Images imageSet `json:"images"`
		} `json:"entry"`
	} `json:"data"`
}

// Recommendations lists titles recommended for a given anime.
func (c *JikanClient) Recommendations(ctx context.Context, malID int64) ([]AnimePreview, error) {
	var env recommendationsEnvelope
	if err := c.getJSON(ctx, fmt.Sprintf("%s/anime/%d/recommendations", c.BaseURL, malID), &env); err != nil {
		return nil, err
	}

	out := make([]AnimePreview, 0, len(env.Data))
	for _, d := range env.Data {
		image := d.Entry.Images.WebP.ImageURL
		if image == "" {
			image = d.Entry.Images.JPG.ImageURL
		}
		out = append(out, AnimePreview{
			MalID:    d.Entry.MalID,
			Title:    d.Entry.Title,
			URL:      d.Entry.URL,
			ImageURL: image,
		})
	}
	return out, nil
}

func (c *JikanClient) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status=%d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}
