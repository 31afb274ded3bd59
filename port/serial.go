package port

import (
	goserial "go.bug.st/serial"
)

// OpenSerial is an OpenFunc backed by a real RS-232 line via go.bug.st/
// serial, the concrete serial binding named as an external collaborator
// (spec §1). It is the only place in this package that depends on an
// actual OS serial driver; everything else in the engine talks to Driver.
func OpenSerial(s Settings) (Driver, error) {
	mode := &goserial.Mode{
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
		StopBits: stopBits(s.StopBits),
		Parity:   parity(s.Parity),
	}
	p, err := goserial.Open(s.Name, mode)
	if err != nil {
		return nil, ErrOpenFailed.New(s.Name, nil).Native()
	}
	if s.ReadTimeout > 0 {
		p.SetReadTimeout(s.ReadTimeout)
	}
	return serialDriver{Port: p}, nil
}

func stopBits(n int) goserial.StopBits {
	switch n {
	case 2:
		return goserial.TwoStopBits
	default:
		return goserial.OneStopBit
	}
}

func parity(p string) goserial.Parity {
	switch p {
	case "E":
		return goserial.EvenParity
	case "O":
		return goserial.OddParity
	default:
		return goserial.NoParity
	}
}

// serialDriver adapts go.bug.st/serial's Port to Driver; it only needs to
// add DiscardInput, everything else is already satisfied by Port's
// io.ReadWriteCloser.
type serialDriver struct {
	goserial.Port
}

func (d serialDriver) DiscardInput() error {
	return d.ResetInputBuffer()
}
