package relay

import (
	"encoding/json"
	"fmt"
	"net/url"

	"poll-voting/internal/model"
)

// Message arrives on the relay channel from the proving agent.
type Message struct {
	Tag     string
	Payload string
}

// Proof as serialized by the agent: the proof type and the proof itself.
type Proof struct {
	Type string `json:"type"`
	PCD  string `json:"pcd"`
}

// DecodePayload URL-decodes the raw payload and parses the serialized proof.
func DecodePayload(raw string) (Proof, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %s", model.ErrMalformedProof, err.Error())
	}

	var proof Proof
	if err := json.Unmarshal([]byte(decoded), &proof); err != nil {
		return Proof{}, fmt.Errorf("%w: %s", model.ErrMalformedProof, err.Error())
	}
	if proof.PCD == "" {
		return Proof{}, fmt.Errorf("%w: pcd is missing", model.ErrMalformedProof)
	}

	return proof, nil
}

// EncodePayload is the inverse of DecodePayload, the form agents send proofs in.
func EncodePayload(proof Proof) (string, error) {
	data, err := json.Marshal(proof)
	if err != nil {
		return "", err
	}
	return url.PathEscape(string(data)), nil
}
