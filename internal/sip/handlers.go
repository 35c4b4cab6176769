package sip

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/whispertalk/sipbridge/internal/call"
	"github.com/whispertalk/sipbridge/internal/procsup"
	"github.com/whispertalk/sipbridge/internal/rtpengine"
	"github.com/whispertalk/sipbridge/internal/sdpbuild"
	"github.com/whispertalk/sipbridge/internal/shmchannel"
	"github.com/whispertalk/sipbridge/internal/sipmsg"
)

// ringingDelay is the pause between 180 Ringing and 200 OK (spec.md §4.1:
// "Send 180 Ringing, wait 500ms, send 200 OK").
const ringingDelay = 500 * time.Millisecond

// handleInvite answers a fresh INVITE: 180 then 200 OK with an SDP
// answer, and stands up every per-call resource (RTP endpoint, SHM
// channels, processor pair, receiver/streamer goroutines) before the ACK
// can arrive (spec.md §4.1, §4.3, §4.6, §4.7).
func (h *Handler) handleInvite(req *sip.Request, from *net.UDPAddr) {
	callID := sipmsg.CallIDValue(req)
	if callID == "" {
		slog.Warn("[sip] invite missing call-id")
		return
	}

	if _, exists := h.calls.Get(callID); exists {
		slog.Debug("[sip] duplicate invite for existing call-id", "call_id", callID)
		return
	}

	username := req.Recipient.User
	line, ok := h.lines.LineByUsername(username)
	if !ok {
		slog.Warn("[sip] invite for unknown line", "user", username)
		return
	}

	number := ""
	if fromHdr := req.From(); fromHdr != nil {
		number = fromHdr.Address.User
	}

	h.send([]byte(sipmsg.Ringing(req).String()), from)
	time.Sleep(ringingDelay)

	callerID, err := h.store.GetOrCreateCaller(number)
	if err != nil {
		slog.Error("[sip] get_or_create_caller failed", "error", err)
		return
	}
	numericID, err := h.store.CreateCall(callID, callerID, line.ID, number)
	if err != nil {
		slog.Error("[sip] create_call failed", "error", err)
		return
	}

	ep, err := h.rtp.Acquire(line.ID)
	if err != nil {
		slog.Error("[sip] acquire rtp endpoint failed", "line", line.ID, "error", err)
		return
	}
	ep.StartCall(callID)

	sdpBody, err := sdpbuild.Answer(h.localIP, ep.Conn().LocalAddr().(*net.UDPAddr).Port)
	if err != nil {
		slog.Error("[sip] build sdp answer failed", "error", err)
		return
	}

	shmIn, err := rtpengine.OpenInboundChannel(numericID)
	if err != nil {
		slog.Error("[sip] open inbound shm failed", "error", err)
		return
	}
	shmOut, err := shmchannel.OpenOrCreate(shmchannel.OutName(numericID), shmchannel.RoleConsumer, shmchannel.DefaultCapacity, shmchannel.DefaultFrameSize)
	if err != nil {
		closeAndUnlinkSHM(numericID, shmIn, nil)
		slog.Error("[sip] open outbound shm failed", "error", err)
		return
	}

	supervisor, err := procsup.New(numericID)
	if err != nil {
		closeAndUnlinkSHM(numericID, shmIn, shmOut)
		slog.Error("[sip] spawn processors failed", "error", err)
		return
	}

	c := call.New(callID, line.ID, numericID, number, ep.Conn().LocalAddr().(*net.UDPAddr).Port, ep)
	c.ShmIn = shmIn
	c.ShmOut = shmOut
	c.Supervisor = supervisor

	if !h.calls.Add(c) {
		// Lost a race against a duplicate INVITE; tear down what we just built.
		supervisor.Stop(context.Background())
		closeAndUnlinkSHM(numericID, shmIn, shmOut)
		return
	}

	res, err := sipmsg.OKToInvite(req, username, h.localIP, h.LocalPort(), sdpBody)
	if err != nil {
		slog.Error("[sip] build 200 ok failed", "error", err)
		h.calls.Remove(callID)
		supervisor.Stop(context.Background())
		closeAndUnlinkSHM(numericID, shmIn, shmOut)
		return
	}
	h.send([]byte(res.String()), from)
	c.SetStatus(call.StatusActive)

	go func() {
		rtpengine.RunReceiver(ep, shmIn, c.SeqTracker, c.Running)
		c.MarkReceiverDone()
	}()
	go func() {
		rtpengine.RunStreamer(ep, shmOut, h.silence, c.Dedup, c.Running)
		c.MarkStreamerDone()
	}()
}

// closeAndUnlinkSHM releases and removes the named SHM segments for a call
// that never reached an active state, so a setup failure doesn't leak the
// /dev/shm segments the way a bare Close (without Unlink) would. shmOut may
// be nil if outbound setup never got that far.
func closeAndUnlinkSHM(numericID int, shmIn, shmOut *shmchannel.Channel) {
	shmIn.Close()
	if err := shmchannel.Unlink(shmchannel.InName(numericID)); err != nil {
		slog.Warn("[sip] unlink inbound shm failed", "error", err)
	}
	if shmOut == nil {
		return
	}
	shmOut.Close()
	if err := shmchannel.Unlink(shmchannel.OutName(numericID)); err != nil {
		slog.Warn("[sip] unlink outbound shm failed", "error", err)
	}
}

// handleAck is a no-op beyond logging: ACK carries no response (spec.md
// §4.1).
func (h *Handler) handleAck(req *sip.Request) {
	slog.Debug("[sip] ack received", "call_id", sipmsg.CallIDValue(req))
}

// handleBye replies 200 OK and tears the call down in full: stop the
// supervisor first to prevent a relaunch race, join the receiver/streamer
// threads, clear the RTP destination, release the SHM channels, and
// record the end time in the store (spec.md §4.1, §5).
func (h *Handler) handleBye(req *sip.Request, from *net.UDPAddr) {
	callID := sipmsg.CallIDValue(req)

	h.send([]byte(sipmsg.PlainOK(req).String()), from)

	c := h.calls.Remove(callID)
	if c == nil {
		slog.Debug("[sip] bye for unknown call-id", "call_id", callID)
		return
	}

	c.SetStatus(call.StatusEnded)
	call.Teardown(context.Background(), c)

	if c.SeqTracker != nil {
		received, lost := c.SeqTracker.Stats()
		slog.Info("[sip] rtp stats at bye", "call_id", callID, "received", received, "lost", lost)
	}

	if err := shmchannel.Unlink(shmchannel.InName(c.NumericID)); err != nil {
		slog.Warn("[sip] unlink inbound shm failed", "error", err)
	}
	if err := shmchannel.Unlink(shmchannel.OutName(c.NumericID)); err != nil {
		slog.Warn("[sip] unlink outbound shm failed", "error", err)
	}

	if err := h.store.EndCall(callID, time.Now()); err != nil {
		slog.Error("[sip] end_call failed", "error", err)
	}
}

// handleNotify echoes the dialog headers back in a 200 OK (spec.md §4.1).
func (h *Handler) handleNotify(req *sip.Request, from *net.UDPAddr) {
	h.send([]byte(sipmsg.PlainOK(req).String()), from)
}
