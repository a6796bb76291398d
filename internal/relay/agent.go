package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

const (
	proofTypeGroupSignal = "semaphore-group-signal"
	proofTypeIdentity    = "semaphore-identity-pcd"
)

// Request is everything the agent needs to prove group membership for one vote.
type Request struct {
	GroupURL      string
	Tag           string
	SignalHash    string
	NullifierSeed string
	ReturnURL     string
}

// Agent opens the external proving agent. It returns once the request is handed
// over, the proof comes back later through the relay channel.
type Agent interface {
	ProveMembership(ctx context.Context, req Request) error
}

type AgentFunc func(ctx context.Context, req Request) error

func (f AgentFunc) ProveMembership(ctx context.Context, req Request) error {
	return f(ctx, req)
}

type argument struct {
	ArgumentType string `json:"argumentType"`
	Value        string `json:"value,omitempty"`
	RemoteURL    string `json:"remoteUrl,omitempty"`
	PCDType      string `json:"pcdType,omitempty"`
}

type proveRequest struct {
	Type      string              `json:"type"`
	ReturnURL string              `json:"returnUrl"`
	PCDType   string              `json:"pcdType"`
	Args      map[string]argument `json:"args"`
	Options   map[string]string   `json:"options"`
}

// PassportAgent builds the prove URL of a passport app. Opening it is left to
// the sink, a browser popup or a link shown to the voter.
type PassportAgent struct {
	passportURL string
	siteName    string
	sink        func(tag, proveURL string)
}

func NewPassportAgent(passportURL, siteName string, sink func(tag, proveURL string)) PassportAgent {
	return PassportAgent{
		passportURL: strings.TrimSuffix(passportURL, "/"),
		siteName:    siteName,
		sink:        sink,
	}
}

func (a PassportAgent) ProveMembership(_ context.Context, req Request) error {
	proveURL, err := a.ProveURL(req)
	if err != nil {
		return err
	}

	if a.sink != nil {
		a.sink(req.Tag, proveURL)
	}
	return nil
}

// ProveURL returns <passport>/#/prove?request=<json>.
func (a PassportAgent) ProveURL(req Request) (string, error) {
	if req.GroupURL == "" || req.ReturnURL == "" {
		return "", errors.New("group url and return url are required")
	}

	request := proveRequest{
		Type:      "Get",
		ReturnURL: req.ReturnURL,
		PCDType:   proofTypeGroupSignal,
		Args: map[string]argument{
			"externalNullifier": {ArgumentType: "BigInt", Value: req.NullifierSeed},
			"group":             {ArgumentType: "Object", RemoteURL: req.GroupURL},
			"identity":          {ArgumentType: "PCD", PCDType: proofTypeIdentity},
			"signal":            {ArgumentType: "BigInt", Value: req.SignalHash},
		},
		Options: map[string]string{"description": a.siteName},
	}

	data, err := json.Marshal(request)
	if err != nil {
		return "", errors.New("failed to marshal the prove request: " + err.Error())
	}

	return a.passportURL + "/#/prove?request=" + url.QueryEscape(string(data)), nil
}
