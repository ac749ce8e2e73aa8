package slider

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hostlink"
	"github.com/cjeanneret/SlideGo/internal/hw/stepper"
	"github.com/cjeanneret/SlideGo/internal/logic/runner"
	"github.com/cjeanneret/SlideGo/internal/protocol"
	"github.com/cjeanneret/SlideGo/internal/store"
)

func (s *Slider) handle(p hostlink.Packet) {
	reply := p.Reply
	if reply == nil {
		reply = func([]byte) {}
	}

	if p.Text {
		l, err := protocol.ParseLegacy(string(p.Data))
		if err != nil {
			debug.Error(err)
			reply(protocol.Errorf("LEGACY"))
			return
		}
		debug.Info("Legacy command from %s ignored: %s %v", p.Source, l.Verb, l.Args)
		reply(l.Reply())
		return
	}

	cmd, err := protocol.Decode(p.Data)
	if err != nil {
		debug.Error(fmt.Errorf("frame from %s dropped: %w", p.Source, err))
		reply(protocol.DecodeErrorReply(p.Data, err))
		return
	}
	debug.Info("Command from %s: %s", p.Source, cmd)
	reply(s.Dispatch(cmd))
}

// Dispatch applies one decoded command and returns the reply.
func (s *Slider) Dispatch(cmd protocol.Command) []byte {
	if cmd.Op.Moves() && s.job != nil {
		debug.Live("%s rejected, %s in progress", cmd.Op, s.job)
		return protocol.ReplyBusy
	}

	switch cmd.Op {
	case protocol.OpPos:
		return s.startMove(int64(cmd.Position), s.cfg.DefaultSpeed, "POS")

	case protocol.OpPosWithSpeed:
		return s.startMove(int64(cmd.Position), stepper.Millis(cmd.SpeedMs), "POS")

	case protocol.OpHome:
		return s.startMove(0, s.cfg.DefaultSpeed, "HOME")

	case protocol.OpRun:
		s.state.Resume()
		job, err := runner.JobForSlot(s.store, cmd.Slot)
		if err != nil {
			debug.Error(err)
			s.Notice("INVALID PROGRAM")
			return protocol.ReplyInvalidProgram
		}
		s.job = job
		s.state.Start()
		s.Notice("RUNNING")
		return protocol.OK(fmt.Sprintf("RUN %d", cmd.Slot))

	case protocol.OpStart:
		s.state.Start()
		s.Notice("START")
		if s.job == nil {
			// Resolve now: the menu closes once the state leaves Idle.
			s.pickJob()
		}
		return protocol.OK("START")

	case protocol.OpStop:
		s.Abort()
		s.Notice("STOP")
		return protocol.OK("STOP")

	case protocol.OpSetHome:
		if s.job != nil {
			return protocol.ReplyBusy
		}
		s.axis.SetHome()
		s.Notice("SET HOME")
		return protocol.OK("SET_HOME")

	case protocol.OpSaveLoop:
		return s.saved(cmd.Slot, s.store.WriteLoop(cmd.Slot, cmd.Name, cmd.Loop))

	case protocol.OpSaveComplex:
		return s.saved(cmd.Slot, s.store.WriteComplex(cmd.Slot, cmd.Name, cmd.Complex))

	case protocol.OpGetAllData:
		return protocol.EncodeDump(s.dump())

	case protocol.OpPing:
		return protocol.Pong
	}
	return protocol.Errorf("UNKNOWN %d", uint8(cmd.Op))
}

func (s *Slider) startMove(target int64, speed stepper.Speed, what string) []byte {
	s.job = runner.MoveJob(target, speed)
	s.state.Resume()
	s.state.Start()
	s.Notice("MOVE")
	return protocol.OK(what)
}

func (s *Slider) saved(slot int, err error) []byte {
	switch {
	case err == nil:
		s.Notice("PROGRAM SAVED")
		return protocol.OK(fmt.Sprintf("SAVED %d", slot))
	case errors.Is(err, store.ErrSlotOutOfRange):
		debug.Error(err)
		return protocol.ReplySlot
	case errors.Is(err, store.ErrTooManySteps):
		debug.Error(err)
		return protocol.Errorf("TOO MANY STEPS")
	}
	debug.Error(err)
	return protocol.Errorf("STORE")
}

// dump collects every valid program for GET_ALL_DATA.
func (s *Slider) dump() []protocol.DumpEntry {
	var entries []protocol.DumpEntry
	for _, info := range s.store.Slots() {
		e := protocol.DumpEntry{Slot: info.Slot, Type: info.Type, Name: info.Name}
		var err error
		switch info.Type {
		case store.TypeLoop:
			e.Loop, err = s.store.ReadLoop(info.Slot)
		case store.TypeComplex:
			e.Complex, err = s.store.ReadComplex(info.Slot)
		}
		if err != nil {
			debug.Error(err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
