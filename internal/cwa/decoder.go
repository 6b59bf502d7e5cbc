package cwa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// StandardGravity converts g to m/s²
const StandardGravity = 9.80665

const (
	tagMetadata     = "MD"
	tagUnknownBlock = "UB"
	tagSessionStart = "SI"
	tagData         = "AX"

	unitsPerG = 256

	progressEvery = 1_000_000
)

// errLimitReached stops decoding once the sample limit is hit. It never leaves Decode.
var errLimitReached = errors.New("sample limit reached")

// Result summarises one decode run
type Result struct {
	Metadata     *Metadata // Last MD section seen, nil when the log has none
	Samples      int       // Samples written to the sink
	Blocks       int       // AX blocks read, rejected ones included
	Rejected     map[RejectReason]int
	LimitReached bool
}

// RejectedBlocks returns the number of AX blocks skipped for any reason
func (r *Result) RejectedBlocks() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Decoder turns a binary log into a stream of timestamped samples
type Decoder struct {
	logger          *slog.Logger
	standardGravity bool
	limit           int
}

// WithLogger sets the logger used for diagnostics
func WithLogger(logger *slog.Logger) func(*Decoder) {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithStandardGravity emits m/s² instead of g
func WithStandardGravity(enabled bool) func(*Decoder) {
	return func(d *Decoder) {
		d.standardGravity = enabled
	}
}

// WithLimit stops decoding after n samples, zero means no limit
func WithLimit(n int) func(*Decoder) {
	return func(d *Decoder) {
		if n > 0 {
			d.limit = n
		}
	}
}

func NewDecoder(options ...func(*Decoder)) *Decoder {
	d := Decoder{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&d)
	}
	return &d
}

// Decode reads the log section by section and writes every sample of every
// valid AX block to sink. The returned Result is never nil and reflects the
// progress made, also when an error stops decoding.
func (d *Decoder) Decode(r io.Reader, sink SampleWriter) (*Result, error) {
	res := Result{Rejected: make(map[RejectReason]int)}

	var (
		br       = bufio.NewReaderSize(r, 64*1024)
		tag      [2]byte
		block    = make([]byte, BlockSize)
		metadata = make([]byte, metadataSize)
		state    DecoderState
		offset   int64
	)

	for {
		n, err := io.ReadFull(br, tag[:])
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				d.logger.Debug("ignoring trailing byte", slog.Int64("offset", offset))
				break
			}
			return &res, fmt.Errorf("reading section tag: %w", err)
		}
		sectionStart := offset
		offset += int64(n)

		switch string(tag[:]) {
		case tagMetadata:
			if err = readPayload(br, metadata, tagMetadata, sectionStart); err != nil {
				return &res, err
			}
			offset += metadataSize

			res.Metadata = parseMetadata(metadata, d.logger)
			d.logger.Info("read metadata",
				slog.Uint64("deviceID", uint64(res.Metadata.DeviceID)),
				slog.Uint64("sessionID", uint64(res.Metadata.SessionID)),
				slog.Int("annotations", len(res.Metadata.Annotations)))

		case tagUnknownBlock:
			var size [2]byte
			if err = readPayload(br, size[:], tagUnknownBlock, sectionStart); err != nil {
				return &res, err
			}
			offset += int64(len(size))

		case tagSessionStart:

		case tagData:
			copy(block, tag[:])
			if err = readPayload(br, block[len(tag):], tagData, sectionStart); err != nil {
				return &res, err
			}
			offset += BlockSize - int64(len(tag))
			res.Blocks++

			err = d.decodeBlock(block, res.Metadata, &state, sink, &res)
			var rejectErr *RejectError
			switch {
			case err == nil:
			case errors.As(err, &rejectErr):
				res.Rejected[rejectErr.Reason]++
				d.logger.Warn("skipping block",
					slog.Int64("offset", sectionStart),
					slog.String("reason", rejectErr.Reason.String()),
					slog.String("error", err.Error()))
			case errors.Is(err, errLimitReached):
				res.LimitReached = true
				d.logResult(&res)
				return &res, nil
			default:
				return &res, fmt.Errorf("writing samples: %w", err)
			}

		default:
			return &res, fmt.Errorf("%w: unrecognised section tag %q at offset %d", ErrMalformedLog, tag[:], sectionStart)
		}
	}

	d.logResult(&res)
	return &res, nil
}

func readPayload(r io.Reader, buf []byte, tag string, offset int64) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %s section at offset %d needs %d bytes", ErrTruncatedLog, tag, offset, len(buf))
		}
		return fmt.Errorf("reading %s section: %w", tag, err)
	}
	return nil
}

// decodeBlock validates one raw block and emits its samples. A block is either
// rejected before any sample is written or written in full, up to the limit.
func (d *Decoder) decodeBlock(raw []byte, md *Metadata, state *DecoderState, sink SampleWriter, res *Result) error {
	b := parseBlock(raw)

	var sessionID uint32
	if md != nil {
		sessionID = md.SessionID
	}
	if err := b.validate(raw, sessionID, md != nil); err != nil {
		return err
	}
	if b.HasScale() {
		d.logger.Error("scale bits set in light field are not supported",
			slog.Uint64("sequence", uint64(b.SequenceID)),
			slog.Uint64("light", uint64(b.Light)))
	}

	freq := b.Frequency()
	timestamp, offset := b.timing(freq)
	count := int(b.SampleCount)
	time0, localFreq := state.Advance(b.SequenceID, timestamp, offset, freq, count)

	scale := 1.0 / unitsPerG
	if d.standardGravity {
		scale = StandardGravity / unitsPerG
	}

	for i := 0; i < count; i++ {
		x, y, z := b.Sample(i)
		epoch := time0 + float64(i)/localFreq
		if err := sink.WriteSample(epoch, float64(x)*scale, float64(y)*scale, float64(z)*scale); err != nil {
			return err
		}

		res.Samples++
		if res.Samples%progressEvery == 0 {
			d.logger.Info("decoding", slog.String("samples", humanize.Comma(int64(res.Samples))))
		}
		if d.limit > 0 && res.Samples >= d.limit {
			return errLimitReached
		}
	}
	return nil
}

func (d *Decoder) logResult(res *Result) {
	d.logger.Info("decoded log",
		slog.String("samples", humanize.Comma(int64(res.Samples))),
		slog.Int("blocks", res.Blocks),
		slog.Int("rejected", res.RejectedBlocks()),
		slog.Bool("limitReached", res.LimitReached))
}
