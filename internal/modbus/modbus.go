// Package modbus is the Modbus/TCP front-end from spec §4.6 and §6.3: a
// coil/register view onto the process image for external SCADA/HMI
// clients.
//
// No pure-Go Modbus *server* library turned up anywhere in the retrieved
// pack (only client implementations exist); this framing is hand-rolled,
// grounded on original_source/plc_cpp/src/plc_runtime.cpp's libmodbus
// server loop for the register map and framing, and on this codebase's
// per-connection-goroutine accept loop idiom for the concurrency shape.
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/fenwick-automation/ladderd/internal/image"
)

// Default network parameters (spec §6.3).
const (
	DefaultPort     = 502
	DefaultUnitID   = 1
	responseTimeout = 500 * time.Millisecond
	listenBacklog   = 10
)

// Coil layout: 0-5 outputs, 6-57 Memory[0..51].
const (
	coilOutputsStart = 0
	coilOutputsEnd   = image.NumOutputs - 1
	coilMemoryStart  = image.NumOutputs
	coilMemoryEnd    = coilMemoryStart + image.NumMemory - 1
	numCoils         = coilMemoryEnd + 1
)

// Discrete input layout: 0-2 Inputs.
const numDiscreteInputs = image.NumInputs

// Holding register layout (spec §6.3).
const (
	hrScanCountLo = iota
	hrScanCountHi
	hrScanTimeTenthsMs
	hrErrorCode
	hrHeartbeatLo
	hrEmergencyStop
	numHoldingRegisters
)

const numInputRegisters = 8 // reserved, always zero

// Modbus function codes.
const (
	fcReadCoils              = 0x01
	fcReadDiscreteInputs     = 0x02
	fcReadHoldingRegisters   = 0x03
	fcReadInputRegisters     = 0x04
	fcWriteSingleCoil        = 0x05
	fcWriteMultipleCoils     = 0x0F
)

const (
	excIllegalFunction     = 0x01
	excIllegalDataAddress  = 0x02
	excIllegalDataValue    = 0x03
	excServerDeviceFailure = 0x04
)

// Server is a Modbus/TCP server reading/writing a single process image.
type Server struct {
	Img    *image.Image
	UnitID byte
	Log    *log.Logger

	ln net.Listener
}

// ListenAndServe binds addr (":502" style) and accepts connections until
// ctx is cancelled, one goroutine per connection (spec §4.6).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("modbus: listen %s: %w", addr, err)
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if s.Log != nil {
				s.Log.Printf("modbus: accept: %v", err)
			}
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn services one accepted connection until the client disconnects
// or a read/write deadline lapses. connID is a per-connection correlation
// ID (not part of the Modbus wire protocol, which already carries its own
// per-request transaction ID) used only for log lines, since one TCP
// connection can carry many requests and plain remote-address logging
// doesn't distinguish overlapping connections from the same client.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	if s.Log != nil {
		s.Log.Printf("modbus: connection %s accepted from %s", connID, conn.RemoteAddr())
	}
	defer func() {
		if s.Log != nil {
			s.Log.Printf("modbus: connection %s closed", connID)
		}
	}()

	header := make([]byte, 7)
	for {
		conn.SetReadDeadline(time.Now().Add(responseTimeout))
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		transactionID := binary.BigEndian.Uint16(header[0:2])
		length := binary.BigEndian.Uint16(header[4:6])
		unitID := header[6]

		if length < 1 || length > 253 {
			return
		}
		body := make([]byte, length-1)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}

		resp := s.dispatch(unitID, body)
		frame := encodeFrame(transactionID, unitID, resp)
		conn.SetWriteDeadline(time.Now().Add(responseTimeout))
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func encodeFrame(transactionID uint16, unitID byte, pdu []byte) []byte {
	out := make([]byte, 7+len(pdu))
	binary.BigEndian.PutUint16(out[0:2], transactionID)
	binary.BigEndian.PutUint16(out[2:4], 0) // protocol id
	binary.BigEndian.PutUint16(out[4:6], uint16(len(pdu)+1))
	out[6] = unitID
	copy(out[7:], pdu)
	return out
}

func exceptionPDU(fc byte, code byte) []byte {
	return []byte{fc | 0x80, code}
}

func (s *Server) dispatch(unitID byte, pdu []byte) []byte {
	if len(pdu) < 1 {
		return exceptionPDU(0, excIllegalFunction)
	}
	fc := pdu[0]

	switch fc {
	case fcReadCoils:
		return s.readBits(pdu, numCoils, s.coilValue)
	case fcReadDiscreteInputs:
		return s.readBits(pdu, numDiscreteInputs, func(i int) bool { return s.Img.Inputs[i].Load() })
	case fcReadHoldingRegisters:
		return s.readRegisters(pdu, numHoldingRegisters, s.holdingRegister)
	case fcReadInputRegisters:
		return s.readRegisters(pdu, numInputRegisters, func(int) uint16 { return 0 })
	case fcWriteSingleCoil:
		return s.writeSingleCoil(pdu)
	case fcWriteMultipleCoils:
		return s.writeMultipleCoils(pdu)
	default:
		return exceptionPDU(fc, excIllegalFunction)
	}
}

func (s *Server) readBits(pdu []byte, count int, get func(int) bool) []byte {
	if len(pdu) != 5 {
		return exceptionPDU(pdu[0], excIllegalDataValue)
	}
	start := int(binary.BigEndian.Uint16(pdu[1:3]))
	qty := int(binary.BigEndian.Uint16(pdu[3:5]))
	if qty < 1 || qty > 2000 || start < 0 || start+qty > count {
		return exceptionPDU(pdu[0], excIllegalDataAddress)
	}

	byteCount := (qty + 7) / 8
	out := make([]byte, 2+byteCount)
	out[0] = pdu[0]
	out[1] = byte(byteCount)
	for i := 0; i < qty; i++ {
		if get(start + i) {
			out[2+i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func (s *Server) readRegisters(pdu []byte, count int, get func(int) uint16) []byte {
	if len(pdu) != 5 {
		return exceptionPDU(pdu[0], excIllegalDataValue)
	}
	start := int(binary.BigEndian.Uint16(pdu[1:3]))
	qty := int(binary.BigEndian.Uint16(pdu[3:5]))
	if qty < 1 || qty > 125 || start < 0 || start+qty > count {
		return exceptionPDU(pdu[0], excIllegalDataAddress)
	}

	out := make([]byte, 2+2*qty)
	out[0] = pdu[0]
	out[1] = byte(2 * qty)
	for i := 0; i < qty; i++ {
		binary.BigEndian.PutUint16(out[2+2*i:4+2*i], get(start+i))
	}
	return out
}

func (s *Server) writeSingleCoil(pdu []byte) []byte {
	if len(pdu) != 5 {
		return exceptionPDU(pdu[0], excIllegalDataValue)
	}
	addr := int(binary.BigEndian.Uint16(pdu[1:3]))
	raw := binary.BigEndian.Uint16(pdu[3:5])
	if raw != 0x0000 && raw != 0xFF00 {
		return exceptionPDU(pdu[0], excIllegalDataValue)
	}
	if addr < 0 || addr >= numCoils {
		return exceptionPDU(pdu[0], excIllegalDataAddress)
	}
	if !s.setCoil(addr, raw == 0xFF00) {
		return exceptionPDU(pdu[0], excIllegalDataAddress)
	}
	return append([]byte(nil), pdu...)
}

func (s *Server) writeMultipleCoils(pdu []byte) []byte {
	if len(pdu) < 6 {
		return exceptionPDU(pdu[0], excIllegalDataValue)
	}
	start := int(binary.BigEndian.Uint16(pdu[1:3]))
	qty := int(binary.BigEndian.Uint16(pdu[3:5]))
	byteCount := int(pdu[5])
	if qty < 1 || qty > 1968 || byteCount != (qty+7)/8 || len(pdu) != 6+byteCount {
		return exceptionPDU(pdu[0], excIllegalDataValue)
	}
	if start < 0 || start+qty > numCoils {
		return exceptionPDU(pdu[0], excIllegalDataAddress)
	}

	data := pdu[6:]
	for i := 0; i < qty; i++ {
		v := data[i/8]&(1<<uint(i%8)) != 0
		s.setCoil(start+i, v)
	}

	out := make([]byte, 5)
	out[0] = pdu[0]
	binary.BigEndian.PutUint16(out[1:3], uint16(start))
	binary.BigEndian.PutUint16(out[3:5], uint16(qty))
	return out
}

func (s *Server) coilValue(addr int) bool {
	if addr >= coilOutputsStart && addr <= coilOutputsEnd {
		return s.Img.Outputs[addr-coilOutputsStart].Load()
	}
	memIdx := addr - coilMemoryStart
	return s.Img.Memory[memIdx].Load()
}

// setCoil writes addr. Writes into the output-mirror range (Memory[46..51])
// are silently re-snapped to the current output value rather than taking
// the written value or raising an exception (spec §6.3: "effectively
// read-only").
func (s *Server) setCoil(addr int, v bool) bool {
	if addr >= coilOutputsStart && addr <= coilOutputsEnd {
		s.Img.SetOutput(addr-coilOutputsStart, v)
		return true
	}
	memIdx := addr - coilMemoryStart
	if memIdx >= image.MemOutputMirrStart && memIdx <= image.MemOutputMirrEnd {
		s.Img.SyncOutputMirror()
		return true
	}
	if memIdx >= image.MemYoloStatusStart && memIdx <= image.MemYoloStatusEnd {
		// Permissive reading of spec §9 Open Question 3: a Modbus write to
		// M40-45 sets both the memory bit and the yolo_flags mirror.
		s.Img.SetYoloFlag(memIdx-image.MemYoloStatusStart, v)
		return true
	}
	s.Img.Memory[memIdx].Store(v)
	return true
}

func (s *Server) holdingRegister(i int) uint16 {
	switch i {
	case hrScanCountLo:
		return uint16(s.Img.ScanCount.Load())
	case hrScanCountHi:
		return uint16(s.Img.ScanCount.Load() >> 16)
	case hrScanTimeTenthsMs:
		tenths := s.Img.ScanTime() / 100.0 // microseconds -> tenths of a millisecond
		if tenths > 65535 {
			tenths = 65535
		}
		if tenths < 0 {
			tenths = 0
		}
		return uint16(tenths)
	case hrErrorCode:
		return uint16(s.Img.ErrorCode.Load())
	case hrHeartbeatLo:
		return uint16(s.Img.Heartbeat.Load())
	case hrEmergencyStop:
		if s.Img.EStop.Load() {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
