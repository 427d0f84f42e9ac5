package negotiation

import (
	"encoding/json"
	"fmt"

	"github.com/denzyldick/mediasafe/internal/config"
	"github.com/denzyldick/mediasafe/internal/netutil"
	"github.com/pion/webrtc/v4"
)

// ChannelLabel names the data channel the Initiator opens.
const ChannelLabel = "file_transfer"

// NewPeerConnection builds a peer connection from the configured ICE servers.
func NewPeerConnection(cfg *config.Config) (*webrtc.PeerConnection, error) {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: ICEPolicy(cfg),
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

// ICEPolicy limits ICE to TURN relays when forced, or when TURN is available
// and the host looks like it sits behind a VPN or CGNAT.
func ICEPolicy(cfg *config.Config) webrtc.ICETransportPolicy {
	if cfg.GetTURNServers() != nil && (cfg.ForceRelay || netutil.ShouldForceRelay()) {
		return webrtc.ICETransportPolicyRelay
	}
	return webrtc.ICETransportPolicyAll
}

// CreateDataChannel opens an ordered, reliable channel.
func CreateDataChannel(pc *webrtc.PeerConnection, label string) (*webrtc.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, NewError("create data channel", err)
	}
	return dc, nil
}

func CreateOffer(pc *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, WrapError("create offer", ErrConnectionFailed, err.Error())
	}

	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, WrapError("set local description", ErrConnectionFailed, err.Error())
	}

	return pc.LocalDescription(), nil
}

func CreateAnswer(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, WrapError("set remote description", ErrConnectionFailed, err.Error())
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, WrapError("create answer", ErrConnectionFailed, err.Error())
	}

	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, WrapError("set local description", ErrConnectionFailed, err.Error())
	}

	return pc.LocalDescription(), nil
}

// encodeJSON renders a description or candidate as a relay payload.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeDescription(payload string, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(payload), &desc); err != nil {
		return desc, WrapError("decode "+want.String(), ErrMalformedMessage, err.Error())
	}
	if desc.Type != want || desc.SDP == "" {
		return desc, WrapError("decode "+want.String(), ErrMalformedMessage,
			fmt.Sprintf("got %s description", desc.Type))
	}
	return desc, nil
}

func decodeCandidate(payload string) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, WrapError("decode candidate", ErrMalformedMessage, err.Error())
	}
	return c, nil
}
