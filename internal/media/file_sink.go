package media

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nareix/joy4/codec/aacparser"
)

// FileSinks returns a SinkFactory writing each stream to its own file in dir,
// named after the SSRC and payload type. Video is written as an elementary
// stream (Annex B for H.264/H.265); AAC is framed with ADTS headers when the
// stream carries an AudioSpecificConfig that ADTS can express.
func FileSinks(dir string) SinkFactory {
	return func(info StreamInfo) (Sink, error) {
		name := fmt.Sprintf("%08x-%d.%s", info.SSRC, info.PayloadType, info.Codec.Extension())
		return CreateFileSink(filepath.Join(dir, name), info)
	}
}

type fileSink struct {
	f *os.File
	w *bufio.Writer

	adts    bool
	config  aacparser.MPEG4AudioConfig
	adtshdr []byte

	// Bytes of the access unit being assembled, for ADTS framing.
	pending []byte
}

// CreateFileSink creates (or truncates) the named file.
func CreateFileSink(name string, info StreamInfo) (Sink, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	s := &fileSink{f: f, w: bufio.NewWriter(f)}

	if info.Codec == MPEG4Audio && len(info.Config) > 0 {
		config, err := aacparser.ParseMPEG4AudioConfigBytes(info.Config)
		if err != nil {
			log.Warn("%s: invalid AudioSpecificConfig, writing raw AUs: %v", name, err)
		} else if config.ObjectType < 1 || config.ObjectType > 4 {
			log.Warn("%s: object type %d cannot be framed as ADTS", name, config.ObjectType)
		} else {
			s.adts = true
			s.config = config
			s.adtshdr = make([]byte, aacparser.ADTSHeaderLength)
		}
	}

	log.Info("Writing %v to %s", info, name)
	return s, nil
}

func (s *fileSink) WriteBuffer(buf *Buffer) error {
	if !s.adts {
		_, err := s.w.Write(buf.Data)
		return err
	}

	s.pending = append(s.pending, buf.Data...)
	if !buf.Has(FlagAUEnd) {
		return nil
	}
	defer func() { s.pending = s.pending[:0] }()
	if buf.Has(FlagCorrupted) {
		return nil
	}
	aacparser.FillADTSHeader(s.adtshdr, s.config, 1024, len(s.pending))
	if _, err := s.w.Write(s.adtshdr); err != nil {
		return err
	}
	_, err := s.w.Write(s.pending)
	return err
}

func (s *fileSink) Close() error {
	err := s.w.Flush()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
