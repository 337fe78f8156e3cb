// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patentdb

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

const samplePatSnapJSON = `{
  "status": true,
  "data": {
    "patent_count": {"total_count": 2},
    "patent_data": [
      {
        "PATENT_ID": "p-001",
        "PN": "CN112345678A",
        "TITLE": {"CN": "一种<em>折叠</em>无人机", "EN": "Folding drone"},
        "ABST": {"EN": "A drone with <b>folding</b> arms.&nbsp;"},
        "ADC": [{"code": "B64C 39/02"}, {"code": "B64U 30/20"}],
        "ANC": {"OFFICIAL": ["ACME UAV CO"]},
        "PBD": "20190412",
        "RELEVANCY": "88%"
      },
      {
        "PN": "US2019001234A1",
        "TITLE": "Rotor guard",
        "ABST": "Guard for rotors.",
        "PBD": 20180101,
        "RELEVANCY": 40
      }
    ]
  }
}`

// patSnapServer fakes the passport and search services on one listener.
type patSnapServer struct {
	*httptest.Server
	key      *rsa.PrivateKey
	password string

	// envelope reports expiry as a 200 with status false instead of a 401.
	envelope   bool
	searchBody string

	mu       sync.Mutex
	logins   int
	expired  map[string]bool
	payloads []map[string]any
}

func newPatSnapServer(t *testing.T) *patSnapServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := &patSnapServer{key: key, password: "hunter2", expired: map[string]bool{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *patSnapServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	switch r.URL.Path {
	case "/public/request_public_key":
		der, _ := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, base64.StdEncoding.EncodeToString(der))
		return

	case "/doLogin":
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		ct, _ := base64.StdEncoding.DecodeString(req["password"])
		plain, err := rsa.DecryptPKCS1v15(nil, s.key, ct)
		if err != nil || string(plain) != s.password {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		s.mu.Lock()
		s.logins++
		token := fmt.Sprintf("tok-%d", s.logins)
		s.mu.Unlock()
		fmt.Fprintf(w, `{"token":%q}`, token)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	expired := s.expired[token]
	if r.URL.Path == "/srp/patents" && !expired {
		var p map[string]any
		_ = json.Unmarshal(body, &p)
		s.payloads = append(s.payloads, p)
	}
	s.mu.Unlock()
	if expired && s.envelope {
		fmt.Fprint(w, `{"status":false,"error_code":67200002,"message":"Token expired, please login again"}`)
		return
	}
	if token == "" || expired {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == "/srp/setting":
		fmt.Fprint(w, `{"status":true}`)
	case r.URL.Path == "/input/search/semantic":
		fmt.Fprint(w, `{"status":true,"data":{"url":"_type=semantic&semantic_id=b1da-ed42&sort=sdesc"}}`)
	case r.URL.Path == "/srp/patents" && s.searchBody != "":
		fmt.Fprint(w, s.searchBody)
	case r.URL.Path == "/srp/patents":
		fmt.Fprint(w, samplePatSnapJSON)
	case strings.HasSuffix(r.URL.Path, "/desc"):
		fmt.Fprint(w, `{"status":true,"data":{"DESC":{"EN":"<p>First paragraph.</p><p>Second&amp;last.</p>"}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *patSnapServer) expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[token] = true
}

func (s *patSnapServer) lastPayload() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		return nil
	}
	return s.payloads[len(s.payloads)-1]
}

func (s *patSnapServer) client() *PatSnap {
	return NewPatSnap(types.PatentDBConfig{
		Username:    "examiner",
		Password:    s.password,
		PassportURL: s.URL,
		SearchURL:   s.URL,
		MaxRetries:  1,
	})
}

func TestPatSnapSearchParsesResults(t *testing.T) {
	srv := newPatSnapServer(t)
	c := srv.client()

	res, err := c.Search(context.Background(), Request{Query: "TAC:(drone)", Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Hits, 2)

	h := res.Hits[0]
	assert.Equal(t, "p-001", h.UID)
	assert.Equal(t, "CN112345678A", h.PublicationNumber)
	assert.Equal(t, "一种折叠无人机", h.Title)
	assert.Equal(t, "A drone with folding arms.", h.Abstract)
	assert.Equal(t, []string{"B64C 39/02", "B64U 30/20"}, h.ClassificationCodes)
	assert.Equal(t, []string{"ACME UAV CO"}, h.Assignees)
	assert.Equal(t, "20190412", h.PublicationDate)
	assert.InDelta(t, 88.0, h.Score, 0.001)

	assert.Equal(t, "US2019001234A1", res.Hits[1].UID, "PN stands in for a missing PATENT_ID")
	assert.InDelta(t, 40.0, res.Hits[1].Score, 0.001)

	p := srv.lastPayload()
	assert.Equal(t, "TAC:(drone)", p["q"])
	assert.EqualValues(t, 25, p["limit"])
	assert.Equal(t, 1, c.Logins())
}

func TestPatSnapSemanticSearchTwoStep(t *testing.T) {
	srv := newPatSnapServer(t)
	c := srv.client()

	res, err := c.SearchSemantic(context.Background(), Request{Query: "a drone with folding arms", ToDate: "20200101"})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)

	p := srv.lastPayload()
	assert.Equal(t, "[SEMANTIC]b1da-ed42", p["q"])
	assert.Equal(t, "semantic", p["_type"])
}

func TestPatSnapFamilyExcludesSelf(t *testing.T) {
	srv := newPatSnapServer(t)
	c := srv.client()

	hits, err := c.Family(context.Background(), "CN112345678A", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "US2019001234A1", hits[0].PublicationNumber)
	assert.Equal(t, "EFAM:(CN112345678A)", srv.lastPayload()["q"])
}

func TestPatSnapFullTextIsPlain(t *testing.T) {
	srv := newPatSnapServer(t)
	c := srv.client()

	text, err := c.FullText(context.Background(), "p-001")
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond&last.", text)
}

func TestPatSnapRefreshesExpiredToken(t *testing.T) {
	srv := newPatSnapServer(t)
	c := srv.client()
	ctx := context.Background()

	_, err := c.Search(ctx, Request{Query: "a"})
	require.NoError(t, err)
	srv.expire("tok-1")

	_, err = c.Search(ctx, Request{Query: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Logins())
	assert.Equal(t, "b", srv.lastPayload()["q"])
}

func TestPatSnapExpiryEnvelope(t *testing.T) {
	srv := newPatSnapServer(t)
	srv.envelope = true
	c := srv.client()
	ctx := context.Background()

	_, err := c.Search(ctx, Request{Query: "a"})
	require.NoError(t, err)
	srv.expire("tok-1")

	_, err = c.Search(ctx, Request{Query: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Logins())
}

func TestPatSnapExpiryTextInResultsIsNotAuth(t *testing.T) {
	srv := newPatSnapServer(t)
	srv.searchBody = `{"status":true,"data":{"patent_count":{"total_count":1},"patent_data":[
		{"PATENT_ID":"p-9","PN":"CN1A","TITLE":"Session renewal","ABST":"The server replies token expired and the client renews it.","PBD":"20190101"}
	]}}`
	c := srv.client()

	res, err := c.Search(context.Background(), Request{Query: "TAC:(token)"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "p-9", res.Hits[0].UID)
	assert.Equal(t, 1, c.Logins())
}

func TestPatSnapConcurrentRefreshLogsInOnce(t *testing.T) {
	srv := newPatSnapServer(t)
	c := srv.client()
	ctx := context.Background()

	_, err := c.Search(ctx, Request{Query: "warmup"})
	require.NoError(t, err)
	srv.expire("tok-1")

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Search(ctx, Request{Query: fmt.Sprintf("q%d", i)}); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 2, c.Logins(), "one initial login plus exactly one refresh")
}

func TestPatSnapMissingCredentials(t *testing.T) {
	c := NewPatSnap(types.PatentDBConfig{SearchURL: "http://127.0.0.1:0"})
	_, err := c.Search(context.Background(), Request{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestPatSnapStatusFalseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":false,"message":"quota exhausted"}`)
	}))
	defer srv.Close()

	c := NewPatSnap(types.PatentDBConfig{SearchURL: srv.URL, Username: "u", Password: "p"})
	c.token = "preset"
	_, err := c.Search(context.Background(), Request{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"a <em>highlighted</em> term", "a highlighted term"},
		{"x&nbsp;y &lt;z&gt;", "x y <z>"},
		{"<div>one</div>\n\n\n<div>two</div>", "one\n\ntwo"},
		{"line<br/>break", "line\nbreak"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanHTML(tt.in))
		})
	}
}

func TestEncryptPasswordRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	enc, err := encryptPassword("s3cret", base64.StdEncoding.EncodeToString(der))
	require.NoError(t, err)
	ct, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	plain, err := rsa.DecryptPKCS1v15(nil, key, ct)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(plain))

	_, err = encryptPassword("x", "not a key")
	assert.Error(t, err)
}
