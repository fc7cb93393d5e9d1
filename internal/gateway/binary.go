package gateway

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/elmerdema/chessgame/internal/match"
)

// Binary frame opcodes. A frame is the opcode byte, a big-endian uint16
// id length, the id and then the raw payload.
const (
	OpUploadAvatar   byte = 1
	OpDownloadAvatar byte = 2
	OpError          byte = 0xFF
)

const MaxAvatarSize = 512 << 10

var errShortFrame = errors.New("short frame")

type Frame struct {
	Op      byte
	ID      string
	Payload []byte
}

func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < 3 {
		return Frame{}, errShortFrame
	}
	n := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) < 3+n {
		return Frame{}, errShortFrame
	}
	return Frame{Op: data[0], ID: string(data[3 : 3+n]), Payload: data[3+n:]}, nil
}

func (f Frame) Encode() []byte {
	out := make([]byte, 3, 3+len(f.ID)+len(f.Payload))
	out[0] = f.Op
	binary.BigEndian.PutUint16(out[1:3], uint16(len(f.ID)))
	out = append(out, f.ID...)
	return append(out, f.Payload...)
}

func errorFrame(id string, status Status) []byte {
	return Frame{Op: OpError, ID: id, Payload: []byte(status)}.Encode()
}

// DispatchBinary runs one avatar frame from s and returns the reply frame.
func (g *Gateway) DispatchBinary(ctx context.Context, s *Session, data []byte) []byte {
	if !g.sessions.registered(s) {
		return errorFrame("", StatusSocketNotFound)
	}
	f, err := DecodeFrame(data)
	if err != nil {
		return errorFrame("", StatusIncorrectData)
	}
	id, err := strconv.ParseInt(f.ID, 10, 64)
	if err != nil {
		return errorFrame(f.ID, StatusIncorrectData)
	}

	switch f.Op {
	case OpUploadAvatar:
		acc, ok := s.Account()
		if !ok || acc != id {
			return errorFrame(f.ID, StatusDenied)
		}
		if len(f.Payload) == 0 || len(f.Payload) > MaxAvatarSize {
			return errorFrame(f.ID, StatusIncorrectData)
		}
		if err := g.avatars.PutAvatar(ctx, id, f.Payload); err != nil {
			return errorFrame(f.ID, statusOf("/avatars/upload", err))
		}
		return Frame{Op: OpUploadAvatar, ID: f.ID}.Encode()

	case OpDownloadAvatar:
		blob, err := g.avatars.Avatar(ctx, id)
		if err != nil {
			return errorFrame(f.ID, statusOf("/avatars/download", err))
		}
		return Frame{Op: OpDownloadAvatar, ID: f.ID, Payload: blob}.Encode()
	}
	return errorFrame(f.ID, statusOf("/avatars", fmt.Errorf("%w: opcode %d", match.ErrNotFound, f.Op)))
}
