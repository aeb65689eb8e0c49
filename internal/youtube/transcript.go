package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/prashantji77/youtube-video-summarizer/internal/config"
)

var (
	// ErrNoCaptions means the video has no usable captions in any of the
	// accepted languages.
	ErrNoCaptions = errors.New("no captions available")
	// ErrTransport means YouTube could not be reached or answered with
	// something other than a watch page or caption track.
	ErrTransport = errors.New("transcript transport failure")
)

const (
	playerResponseMarker = "ytInitialPlayerResponse"
	maxBodyBytes         = 8 << 20
	userAgent            = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	// "asr" marks auto-generated captions
	Kind string `json:"kind"`
}

type timedText struct {
	Segments []string `xml:"text"`
}

// Fetcher downloads caption transcripts for YouTube videos.
type Fetcher struct {
	client    *http.Client
	baseURL   *url.URL
	languages []string
}

func NewFetcher(cfg *config.TranscriptConfig) (*Fetcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transcript base url %q: %w", cfg.BaseURL, err)
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout()},
		baseURL:   base,
		languages: cfg.Languages,
	}, nil
}

// Fetch returns the whole transcript of the video as one string, caption
// segments joined by single spaces.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	logger := log.Ctx(ctx).With().Str("video_id", videoID).Logger()

	watchURL := f.baseURL.ResolveReference(&url.URL{Path: "/watch", RawQuery: url.Values{"v": {videoID}}.Encode()})
	page, err := f.get(ctx, watchURL.String())
	if err != nil {
		return "", err
	}

	player, err := parsePlayerResponse(page)
	if err != nil {
		return "", err
	}
	if status := player.PlayabilityStatus.Status; status != "" && status != "OK" {
		return "", fmt.Errorf("%w: video is %s: %s", ErrNoCaptions, strings.ToLower(status), player.PlayabilityStatus.Reason)
	}

	track, ok := pickTrack(player.Captions.Renderer.CaptionTracks, f.languages)
	if !ok {
		return "", fmt.Errorf("%w: no track in %v", ErrNoCaptions, f.languages)
	}
	logger.Debug().Str("language", track.LanguageCode).Str("kind", track.Kind).Msg("Selected caption track")

	trackURL, err := f.baseURL.Parse(track.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad caption url: %v", ErrTransport, err)
	}
	body, err := f.get(ctx, trackURL.String())
	if err != nil {
		return "", err
	}

	transcript, err := parseTimedText(body)
	if err != nil {
		return "", err
	}
	logger.Debug().Int("chars", len(transcript)).Msg("Fetched transcript")
	return transcript, nil
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrTransport, req.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return body, nil
}

// parsePlayerResponse finds the player response JSON inside the watch
// page's inline scripts.
func parsePlayerResponse(page []byte) (*playerResponse, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: parse watch page: %v", ErrTransport, err)
	}

	var (
		player   *playerResponse
		parseErr error
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		script := s.Text()
		at := strings.Index(script, playerResponseMarker)
		if at < 0 {
			return true
		}
		brace := strings.IndexByte(script[at:], '{')
		if brace < 0 {
			return true
		}
		var pr playerResponse
		// the decoder stops after the first complete object and ignores
		// the rest of the script
		if err := json.NewDecoder(strings.NewReader(script[at+brace:])).Decode(&pr); err != nil {
			parseErr = err
			return true
		}
		player = &pr
		return false
	})

	if player == nil {
		if parseErr != nil {
			return nil, fmt.Errorf("%w: decode player response: %v", ErrTransport, parseErr)
		}
		return nil, fmt.Errorf("%w: watch page has no player response", ErrTransport)
	}
	return player, nil
}

// pickTrack walks the preferred languages in order and takes a manual track
// before an auto-generated one.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, lang := range languages {
		var generated *captionTrack
		for i := range tracks {
			t := &tracks[i]
			if t.BaseURL == "" || !languageMatches(t.LanguageCode, lang) {
				continue
			}
			if t.Kind != "asr" {
				return *t, true
			}
			if generated == nil {
				generated = t
			}
		}
		if generated != nil {
			return *generated, true
		}
	}
	return captionTrack{}, false
}

func languageMatches(code, lang string) bool {
	code, lang = strings.ToLower(code), strings.ToLower(lang)
	return code == lang || strings.HasPrefix(code, lang+"-")
}

func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("%w: decode caption track: %v", ErrTransport, err)
	}

	parts := make([]string, 0, len(tt.Segments))
	for _, seg := range tt.Segments {
		// captions arrive HTML-escaped inside the XML
		text := strings.TrimSpace(html.UnescapeString(seg))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: caption track is empty", ErrNoCaptions)
	}
	return strings.Join(parts, " "), nil
}
