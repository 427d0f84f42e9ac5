package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/denzyldick/mediasafe/internal/config"
	"github.com/denzyldick/mediasafe/internal/negotiation"
	"github.com/denzyldick/mediasafe/internal/transfer"
	"github.com/denzyldick/mediasafe/internal/ui"
	"github.com/denzyldick/mediasafe/internal/version"
	"github.com/pion/webrtc/v4"
)

const handshakeTimeout = 10 * time.Second

// runSession negotiates a channel in roomID, exchanges device info and
// prints a summary.
func runSession(ctx context.Context, cfg *config.Config, role negotiation.Role, roomID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := negotiation.NewSession(cfg, role, roomID)
	start := time.Now()

	var view *ui.NegotiationUI
	var spinner *ui.SimpleSpinner
	if flagPlain {
		spinner = ui.NewSimpleSpinner(stageFor(role, webrtc.PeerConnectionStateNew))
		session.OnStateChange = func(state webrtc.PeerConnectionState) {
			spinner.UpdateMessage(stageFor(role, state))
		}
		spinner.Start()
		defer spinner.Stop()
	} else {
		view = ui.NewNegotiationUI(fmt.Sprintf("Pairing as %s", role), cancel)
		session.OnStateChange = func(state webrtc.PeerConnectionState) {
			view.SetPeerState(state)
			view.SetStage(stageFor(role, state))
		}
		view.Start()
		view.SetStage(stageFor(role, webrtc.PeerConnectionStateNew))
	}

	result, err := session.Run(ctx)
	if view != nil {
		view.Stop()
	}
	if err != nil {
		return err
	}
	if spinner != nil {
		spinner.Success("Direct channel open")
	}
	defer result.Close()

	hsCtx, hsCancel := context.WithTimeout(ctx, handshakeTimeout)
	defer hsCancel()
	peer, err := transfer.Handshake(hsCtx, result.DataChannel, role, localDevice())
	if err != nil {
		return err
	}

	fmt.Println(ui.SessionSummaryView(ui.SessionSummary{
		Role:      role.String(),
		DeviceID:  result.DeviceID,
		PeerName:  peer.Name,
		PeerVer:   peer.Version,
		Channel:   result.DataChannel.Label(),
		ICEPolicy: negotiation.ICEPolicy(cfg).String(),
		RelayURL:  cfg.RelayURL,
		Duration:  time.Since(start).Truncate(time.Millisecond).String(),
	}))
	return nil
}

func stageFor(role negotiation.Role, state webrtc.PeerConnectionState) string {
	switch state {
	case webrtc.PeerConnectionStateConnecting:
		return "Establishing direct connection..."
	case webrtc.PeerConnectionStateConnected:
		return "Opening data channel..."
	}
	if role == negotiation.Initiator {
		return "Waiting for the other device to join..."
	}
	return "Waiting for an offer..."
}

func localDevice() transfer.DeviceInfo {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "mediasafe"
	}
	return transfer.DeviceInfo{
		Name:    name,
		Version: strings.TrimPrefix(version.Version, "v"),
	}
}
