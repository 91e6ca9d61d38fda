package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"agmark-sync/models"
	"agmark-sync/utils"
)

// FirebaseOptions configures the Realtime Database REST backend.
type FirebaseOptions struct {
	DatabaseURL string
	// AuthToken is sent as the auth query parameter (database secret or ID token).
	AuthToken  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// FirebaseStore appends documents through the Firebase Realtime Database REST API.
type FirebaseStore struct {
	http   *resty.Client
	token  string
	logger *utils.Logger
}

type pushResponse struct {
	Name string `json:"name"`
}

type firebaseError struct {
	Error string `json:"error"`
}

// NewFirebaseStore builds a client for the database at opts.DatabaseURL.
// No request is made until Ping or Push.
func NewFirebaseStore(opts FirebaseOptions, logger *utils.Logger) (*FirebaseStore, error) {
	if opts.DatabaseURL == "" {
		return nil, fmt.Errorf("firebase: database url is required")
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(strings.TrimRight(opts.DatabaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &FirebaseStore{http: client, token: opts.AuthToken, logger: logger}, nil
}

// Ping checks that the database answers, listing only top-level keys.
func (f *FirebaseStore) Ping(ctx context.Context) error {
	req := f.request(ctx).SetQueryParam("shallow", "true")
	resp, err := req.Get("/.json")
	if err != nil {
		return &StoreError{Op: "ping", Path: "/", Err: err}
	}
	if resp.IsError() {
		return &StoreError{Op: "ping", Path: "/", Status: resp.StatusCode(), Err: responseError(resp)}
	}
	f.logger.Debug("[firebase] Ping ok in %v", resp.Time())
	return nil
}

// Collection validates path; resolving needs no round trip.
func (f *FirebaseStore) Collection(_ context.Context, path string) (Collection, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	return &firebaseCollection{store: f, path: clean}, nil
}

// Close releases idle connections.
func (f *FirebaseStore) Close() error {
	f.http.GetClient().CloseIdleConnections()
	return nil
}

func (f *FirebaseStore) request(ctx context.Context) *resty.Request {
	req := f.http.R().SetContext(ctx)
	if f.token != "" {
		req.SetQueryParam("auth", f.token)
	}
	return req
}

type firebaseCollection struct {
	store *FirebaseStore
	path  string
}

func (c *firebaseCollection) Path() string {
	return c.path
}

// Push POSTs doc under the collection; the database answers with the
// generated chronologically ordered key.
func (c *firebaseCollection) Push(ctx context.Context, doc models.Document) (string, error) {
	var out pushResponse
	resp, err := c.store.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(doc).
		SetResult(&out).
		Post("/" + c.path + ".json")
	if err != nil {
		return "", &StoreError{Op: "push", Path: c.path, Err: err}
	}
	if resp.IsError() {
		return "", &StoreError{Op: "push", Path: c.path, Status: resp.StatusCode(), Err: responseError(resp)}
	}
	if out.Name == "" {
		return "", &StoreError{Op: "push", Path: c.path, Status: resp.StatusCode(), Err: errors.New("response carried no key")}
	}
	return out.Name, nil
}

func responseError(resp *resty.Response) error {
	var fe firebaseError
	body := resp.Body()
	if len(body) > 0 && json.Unmarshal(body, &fe) == nil && fe.Error != "" {
		return errors.New(fe.Error)
	}
	return errors.New(resp.Status())
}
