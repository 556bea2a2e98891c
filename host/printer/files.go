package printer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"argentum/protocol"
	"argentum/transfer"
)

// CheckMD5 compares the MD5 of the local file with the printer's copy
func (p *Printer) CheckMD5(path string) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	sum := md5.Sum(contents)
	return p.compareDigest("md5", path, hex.EncodeToString(sum[:]), MD5Timeout)
}

// CheckDJB2 compares the rolling checksum of the local file with the
// printer's copy. It is the check used to skip re-uploading a file.
func (p *Printer) CheckDJB2(path string) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return p.compareDigest("djb2", path, protocol.FormatDJB2(protocol.SumDJB2(contents)), DJB2Timeout)
}

// compareDigest asks the printer for a digest of its copy of path and
// compares the first response line with local
func (p *Printer) compareDigest(command, path, local string, timeout time.Duration) (bool, error) {
	name := filepath.Base(path)
	log.Debug().Str("file", name).Str(command, local).Msg("asking printer for digest")

	lines, err := p.Command(command+" "+name, WithTimeout(timeout), WithExpect(string(protocol.Delimiter)))
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		return false, protocol.ErrNoResponse
	}
	return lines[0] == local, nil
}

// Send uploads a local file under its base name. The link is held for the
// whole transfer; cancellation through progress or ctx is reported in the
// returned report, not as an error.
func (p *Printer) Send(ctx context.Context, path string, progress transfer.ProgressFunc, opts ...transfer.Option) (transfer.Report, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return transfer.Report{}, err
	}
	name := filepath.Base(path)

	session, err := transfer.NewSession(name, contents, append(slices.Clone(p.transferOptions), opts...)...)
	if err != nil {
		return transfer.Report{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return transfer.Report{}, ErrNotConnected
	}

	report, err := session.Run(ctx, p.transport, progress)
	if err != nil {
		var terr *protocol.TransportError
		if errors.As(err, &terr) || errors.Is(err, protocol.ErrTransportClosed) {
			return report, p.failLocked(err)
		}
		log.Warn().Err(err).Str("file", name).Int("sent", report.BytesSent).Msg("upload failed")
		return report, fmt.Errorf("send %s: %w", name, err)
	}

	log.Info().Str("file", name).Int("size", report.Size).Bool("compressed", report.Compressed).
		Stringer("outcome", report.Outcome).Dur("elapsed", report.Elapsed).Msg("upload finished")
	return report, nil
}

// SyncProgress reports upload progress for one file of a Sync. Returning
// false cancels the sync.
type SyncProgress func(name string, sent, total int) bool

// Sync makes sure the printer holds current copies of the given files:
// files it does not list, or whose checksum differs, are uploaded. It stops
// at the first failed or cancelled upload.
func (p *Printer) Sync(ctx context.Context, paths []string, progress SyncProgress) ([]transfer.Report, error) {
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}

	missing, err := p.MissingFiles(names)
	if err != nil {
		return nil, err
	}

	var reports []transfer.Report
	for i, path := range paths {
		name := names[i]

		if !slices.Contains(missing, name) {
			current, err := p.CheckDJB2(path)
			switch {
			case errors.Is(err, protocol.ErrNoResponse):
			case err != nil:
				return reports, err
			case current:
				log.Debug().Str("file", name).Msg("printer copy is current")
				continue
			}
		}

		var fileProgress transfer.ProgressFunc
		if progress != nil {
			fileProgress = func(sent, total int) bool {
				return progress(name, sent, total)
			}
		}
		report, err := p.Send(ctx, path, fileProgress)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
		if report.Outcome == transfer.OutcomeCancelled {
			return reports, nil
		}
	}
	return reports, nil
}
