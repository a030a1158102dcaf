package modbus

import (
	"encoding/binary"
	"testing"

	"github.com/fenwick-automation/ladderd/internal/image"
)

func readCoilsPDU(start, qty uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = fcReadCoils
	binary.BigEndian.PutUint16(pdu[1:3], start)
	binary.BigEndian.PutUint16(pdu[3:5], qty)
	return pdu
}

func TestDispatchReadCoilsReflectsOutputs(t *testing.T) {
	img := image.New()
	img.SetOutput(1, true)
	s := &Server{Img: img}

	resp := s.dispatch(DefaultUnitID, readCoilsPDU(0, 8))
	if resp[0] != fcReadCoils {
		t.Fatalf("unexpected function code in response: %x", resp[0])
	}
	if resp[2]&(1<<1) == 0 {
		t.Fatalf("expected bit 1 set in coil response, got %08b", resp[2])
	}
}

func TestDispatchReadCoilsOutOfRangeIsException(t *testing.T) {
	img := image.New()
	s := &Server{Img: img}

	resp := s.dispatch(DefaultUnitID, readCoilsPDU(uint16(numCoils), 1))
	if resp[0] != fcReadCoils|0x80 || resp[1] != excIllegalDataAddress {
		t.Fatalf("expected illegal data address exception, got %v", resp)
	}
}

func TestWriteSingleCoilSetsOutput(t *testing.T) {
	img := image.New()
	s := &Server{Img: img}

	pdu := make([]byte, 5)
	pdu[0] = fcWriteSingleCoil
	binary.BigEndian.PutUint16(pdu[1:3], 3)
	binary.BigEndian.PutUint16(pdu[3:5], 0xFF00)

	resp := s.dispatch(DefaultUnitID, pdu)
	if resp[0] != fcWriteSingleCoil {
		t.Fatalf("unexpected response function code: %x", resp[0])
	}
	if !img.Outputs[3].Load() {
		t.Fatalf("expected output 3 to be set")
	}
}

func TestWriteSingleCoilRejectsInvalidValue(t *testing.T) {
	img := image.New()
	s := &Server{Img: img}

	pdu := make([]byte, 5)
	pdu[0] = fcWriteSingleCoil
	binary.BigEndian.PutUint16(pdu[1:3], 0)
	binary.BigEndian.PutUint16(pdu[3:5], 0x1234) // neither 0x0000 nor 0xFF00

	resp := s.dispatch(DefaultUnitID, pdu)
	if resp[0] != fcWriteSingleCoil|0x80 || resp[1] != excIllegalDataValue {
		t.Fatalf("expected illegal data value exception, got %v", resp)
	}
}

func TestSetCoilOutputMirrorRangeIsReadOnly(t *testing.T) {
	img := image.New()
	img.SetOutput(0, true)
	s := &Server{Img: img}

	mirrorAddr := coilMemoryStart + image.MemOutputMirrStart
	ok := s.setCoil(mirrorAddr, false)
	if !ok {
		t.Fatalf("writes into the output-mirror range must not raise an exception")
	}
	if !img.Memory[image.MemOutputMirrStart].Load() {
		t.Fatalf("output-mirror bit must re-snap to the live output, not the written value")
	}
}

func TestSetCoilYoloRangeSetsMirror(t *testing.T) {
	img := image.New()
	s := &Server{Img: img}

	addr := coilMemoryStart + image.MemYoloStatusStart + 2
	s.setCoil(addr, true)
	if !img.YoloFlags[2].Load() {
		t.Fatalf("expected yolo flag 2 to be set via Modbus write")
	}
	if !img.Memory[image.MemYoloStatusStart+2].Load() {
		t.Fatalf("expected memory mirror for yolo flag 2 to be set via Modbus write")
	}
}

func TestHoldingRegisterErrorCode(t *testing.T) {
	img := image.New()
	img.ErrorCode.Store(uint32(image.ErrEmergencyStop))
	s := &Server{Img: img}

	if got := s.holdingRegister(hrErrorCode); got != uint16(image.ErrEmergencyStop) {
		t.Fatalf("expected error code %d, got %d", image.ErrEmergencyStop, got)
	}
}

func TestDispatchUnknownFunctionCodeIsException(t *testing.T) {
	img := image.New()
	s := &Server{Img: img}

	resp := s.dispatch(DefaultUnitID, []byte{0x99})
	if resp[0] != 0x99|0x80 || resp[1] != excIllegalFunction {
		t.Fatalf("expected illegal function exception, got %v", resp)
	}
}
