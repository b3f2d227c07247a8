package xlog

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/safearchive/zip"
	"github.com/google/safeopen"
	"go.uber.org/multierr"

	"github.com/benz9527/xtree/lib/id"
	"github.com/benz9527/xtree/lib/infra"
)

type fileSizeUnit uint64

const (
	B        fileSizeUnit = 1
	KB                    = B << 10
	MB                    = KB << 10
	_maxSize              = 1024 * MB
)

type fileAgeUnit int64

const (
	backupDateTimeFormat = "2006_01_02T15_04_05.999999999_Z07_00"

	Second      fileAgeUnit = fileAgeUnit(time.Second)
	Minute                  = 60 * Second
	Hour                    = 60 * Minute
	Day                     = 24 * Hour
	_maxFileAge             = 14 * Day
)

var (
	fileSizeRegexp = regexp.MustCompile(`^(\d+)(([kK]|[mM])?[bB])$`)
	fileAgeRegexp  = regexp.MustCompile(`^(\d+)(s|[sS]ec|[mM]in|[hH](our[s]?)?|[dD](ay[s]?)?)$`)

	// Dedups backup filenames when two rotations land on the same timestamp.
	backupSeq, _ = id.MonotonicNonZeroID()
)

// parseFileSize reads strings like "100KB" and clamps the result to
// the 1GB rotation ceiling. The regexp anchors both ends, so a nil
// match already rules out trailing garbage.
func parseFileSize(size string) (uint64, error) {
	m := fileSizeRegexp.FindStringSubmatch(size)
	if len(m) < 3 {
		return 0, infra.NewErrorStack("invalid file size unit")
	}
	n, _ := strconv.ParseUint(m[1], 10, 64)
	unit := B
	switch strings.ToUpper(m[2]) {
	case "KB":
		unit = KB
	case "MB":
		unit = MB
	}
	if n > uint64(_maxSize/unit) {
		n = uint64(_maxSize / unit)
	}
	return n * uint64(unit), nil
}

// parseFileAge reads strings like "3day" or "12h" and clamps the
// result to the two week retention ceiling.
func parseFileAge(age string) (time.Duration, error) {
	m := fileAgeRegexp.FindStringSubmatch(age)
	if len(m) < 3 {
		return 0, infra.NewErrorStack("invalid file age unit")
	}
	n, _ := strconv.ParseInt(m[1], 10, 64)
	unit := Second
	switch strings.ToUpper(m[2]) {
	case "M", "MIN":
		unit = Minute
	case "H", "HOUR", "HOURS":
		unit = Hour
	case "D", "DAY", "DAYS":
		unit = Day
	}
	dur := time.Duration(n) * time.Duration(unit)
	if dur > time.Duration(_maxFileAge) {
		dur = time.Duration(_maxFileAge)
	}
	return dur, nil
}

var _ io.WriteCloser = (*rotateLog)(nil)

// rotateLog renames the live file into a timestamped backup once the
// size cap is crossed, then keeps writing into a fresh one. A watcher
// on the log directory archives or deletes the aged backups.
type rotateLog struct {
	ctx context.Context

	// Static settings, copied over from the core config.
	filePath          string
	filename          string
	fileMaxSize       string
	fileMaxAge        string
	fileZipName       string
	fileMaxBackups    int
	fileCompressBatch int
	fileCompressible  bool

	// Live write state.
	maxSize     uint64
	wroteSize   uint64
	mkdirOnce   sync.Once
	currentFile atomic.Pointer[os.File]
	fileWatcher atomic.Pointer[fsnotify.Watcher]
}

func (rl *rotateLog) Write(p []byte) (n int, err error) {
	select {
	case <-rl.ctx.Done():
		return 0, io.EOF
	default:
	}

	if rl.currentFile.Load() == nil {
		if err = rl.open(); err != nil {
			return 0, err
		}
	}
	f := rl.currentFile.Load()
	// The entry that crosses the cap still lands in the old file,
	// the rotation runs right after it.
	if rl.wroteSize+uint64(len(p)) > rl.maxSize {
		if n, err = f.Write(p); err != nil {
			return
		}
		return n, rl.rotate()
	}

	n, err = f.Write(p)
	rl.wroteSize += uint64(n)
	return
}

// Close releases the live file. A failed close still clears the
// pointer, the next write reopens from scratch.
func (rl *rotateLog) Close() error {
	f := rl.currentFile.Swap(nil)
	if f == nil {
		return nil
	}
	return f.Close()
}

// initialize validates the size and age settings, then hangs the
// fsnotify watcher on the log directory. The watcher doubles as the
// already-initialized marker.
func (rl *rotateLog) initialize() error {
	if rl.fileWatcher.Load() != nil {
		return nil
	}

	size, err := parseFileSize(rl.fileMaxSize)
	if err == nil {
		_, err = parseFileAge(rl.fileMaxAge)
	}
	if err != nil {
		reportRotateError(err)
		return err
	}
	rl.maxSize = size

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		err = infra.WrapErrorStackWithMessage(err, "failed to create file watcher")
		reportRotateError(err)
		return err
	}
	if err = watcher.Add(rl.filePath); err != nil {
		err = infra.WrapErrorStackWithMessage(err, "failed to add log directory to watcher")
		reportRotateError(err)
		return err
	}
	rl.fileWatcher.Store(watcher)

	go rl.archiveLoop()
	return nil
}

func (rl *rotateLog) ensureDir() error {
	var err error
	rl.mkdirOnce.Do(func() {
		if rl.filePath == "" {
			rl.filePath = os.TempDir()
		}
		if rl.filePath != os.TempDir() {
			err = os.MkdirAll(rl.filePath, 0o644)
		}
	})
	return infra.WrapErrorStack(err)
}

// backup closes the live file and renames it with an UTC timestamp
// suffix. A monotonic sequence breaks the tie when two rotations hit
// the same nanosecond.
func (rl *rotateLog) backup() error {
	logName := rl.filename
	ext := filepath.Ext(logName)
	logNamePrefix := strings.TrimSuffix(logName, ext)
	now := time.Now().UTC()
	ts := now.Format(backupDateTimeFormat)
	pathToBackup := filepath.Join(rl.filePath, logNamePrefix+"_"+ts+ext)
	if _, err := os.Stat(pathToBackup); err == nil && backupSeq != nil {
		pathToBackup = filepath.Join(rl.filePath, logNamePrefix+"_"+ts+"_"+strconv.FormatUint(backupSeq.Number(), 10)+ext)
	}
	if err := rl.currentFile.Load().Close(); err != nil {
		return infra.WrapErrorStackWithMessage(err, "failed to backup current log: "+filepath.Join(rl.filePath, logName))
	}
	return os.Rename(filepath.Join(rl.filePath, logName), pathToBackup)
}

func (rl *rotateLog) create() error {
	if err := rl.ensureDir(); err != nil {
		return err
	}
	f, err := safeopen.OpenFileBeneath(rl.filePath, rl.filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "unable to create new log file: "+filepath.Join(rl.filePath, rl.filename))
	}
	rl.wroteSize = 0
	rl.currentFile.Store(f)
	return nil
}

func (rl *rotateLog) rotate() error {
	if err := rl.backup(); err != nil {
		return err
	}
	return rl.create()
}

// open loads the file state lazily, then spins up the watcher if the
// constructor has not done that yet. An unreadable live file is
// backed up and replaced instead of failing the write.
func (rl *rotateLog) open() error {
	if err := rl.ensureDir(); err != nil {
		return err
	}

	pathToLog := filepath.Join(rl.filePath, rl.filename)
	info, err := os.Stat(pathToLog)
	switch {
	case os.IsNotExist(err):
		if cerr := rl.create(); cerr != nil {
			return multierr.Append(infra.WrapErrorStack(err), cerr)
		}
		return rl.initialize()
	case err != nil:
		rl.currentFile.Store(nil)
		return infra.WrapErrorStack(err)
	case info.IsDir():
		rl.currentFile.Store(nil)
		return infra.NewErrorStack("log file <" + pathToLog + "> is a dir")
	}

	f, err := safeopen.OpenFileBeneath(rl.filePath, rl.filename, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		accessErr := infra.WrapErrorStackWithMessage(err, "unable to access log file: "+pathToLog)
		if rerr := rl.rotate(); rerr != nil {
			return infra.WrapErrorStackWithMessage(multierr.Combine(accessErr, rerr), "failed to backup then open new log file: "+pathToLog)
		}
		return rl.initialize()
	}
	rl.currentFile.Store(f)
	rl.wroteSize = uint64(info.Size())
	return rl.initialize()
}

// archiveLoop runs until the context closes. Every create event in
// the log directory triggers a sweep over the backups.
func (rl *rotateLog) archiveLoop() {
	watcher := rl.fileWatcher.Load()
	if watcher == nil {
		return
	}
	ext := filepath.Ext(rl.filename)
	logName := rl.filename[:len(rl.filename)-len(ext)]
	maxAge, _ := parseFileAge(rl.fileMaxAge)
	for {
		select {
		case <-rl.ctx.Done():
			_ = rl.Close()
			reportRotateError(watcher.Close())
			rl.fileWatcher.Store(nil)
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				rl.sweepBackups(logName, ext, maxAge)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			reportRotateError(err)
		}
	}
}

// sweepBackups collects the expired backups and either zips them away
// or removes them on the spot.
func (rl *rotateLog) sweepBackups(logName, ext string, maxAge time.Duration) {
	logInfos, err := rl.listBackupLogs(logName, ext)
	if err != nil || len(logInfos) <= 0 {
		reportRotateError(err)
		return
	}
	now := time.Now().UTC()
	expired, rest := splitExpiredLogs(now, logName, ext, maxAge, logInfos)
	expired = trimToMaxBackups(expired, rest, rl.fileMaxBackups)
	if rl.fileCompressible {
		if len(expired) < rl.fileCompressBatch {
			return
		}
		if err := archiveExpiredLogs(rl.filePath, rl.fileZipName, expired); err != nil {
			reportRotateError(err)
		}
		return
	}
	for _, info := range expired {
		filename := filepath.Base(info.Name())
		_ = os.Remove(filepath.Join(rl.filePath, filename))
	}
}

// listBackupLogs collects every backup in the log directory, skipping
// the live file itself.
func (rl *rotateLog) listBackupLogs(logName, ext string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(rl.filePath)
	if err != nil || len(entries) == 0 {
		return nil, infra.WrapErrorStack(err)
	}
	logInfos := make([]fs.FileInfo, 0, 16)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		if filename == rl.filename || !strings.HasPrefix(filename, logName) || !strings.HasSuffix(filename, ext) {
			continue
		}
		if info, ierr := entry.Info(); ierr == nil && info != nil {
			logInfos = append(logInfos, info)
		}
	}
	return logInfos, nil
}

func RotateLog(ctx context.Context, cfg *FileCoreConfig) io.WriteCloser {
	if ctx == nil || cfg == nil {
		return nil
	}
	w := &rotateLog{
		ctx:               ctx,
		filePath:          cfg.FilePath,
		filename:          cfg.Filename,
		fileMaxSize:       cfg.FileMaxSize,
		fileMaxAge:        cfg.FileMaxAge,
		fileZipName:       cfg.FileZipName,
		fileMaxBackups:    cfg.FileMaxBackups,
		fileCompressBatch: cfg.FileCompressBatch,
		fileCompressible:  cfg.FileCompressible,
	}
	if err := w.initialize(); err != nil {
		return nil
	}
	return w
}

// splitExpiredLogs separates the backups whose timestamp suffix has
// aged out from the ones still inside the retention window.
func splitExpiredLogs(now time.Time, logName, ext string, maxAge time.Duration, logInfos []fs.FileInfo) (expired, rest []fs.FileInfo) {
	for _, info := range logInfos {
		filename := filepath.Base(info.Name())
		if !strings.HasPrefix(filename, logName) || !strings.HasSuffix(filename, ext) {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(filename, logName+"_"), ext)
		dateTime, err := time.Parse(backupDateTimeFormat, ts)
		if err != nil {
			// Backups deduped by the sequence carry one more suffix.
			if i := strings.LastIndex(ts, "_"); i > 0 {
				dateTime, err = time.Parse(backupDateTimeFormat, ts[:i])
			}
			if err != nil {
				continue
			}
		}
		if now.Sub(dateTime) > maxAge {
			expired = append(expired, info)
		} else {
			rest = append(rest, info)
		}
	}
	return expired, rest
}

func reportRotateError(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[XLogger] rolling file occurs error: %s\n", err)
	}
}

// trimToMaxBackups moves the oldest in-window backups over to the
// expired pile until at most maxBackups remain. The sort runs on mod
// time, a manually touched backup can shuffle the order.
func trimToMaxBackups(expired, rest []fs.FileInfo, maxBackups int) []fs.FileInfo {
	redundant := len(rest) - maxBackups
	if redundant <= 0 {
		return expired
	}
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].ModTime().Before(rest[j].ModTime())
	})
	return append(expired, rest[:redundant]...)
}

// archiveExpiredLogs folds the expired backups into one zip. When the
// zip already exists its entries are carried over into a rebuilt
// archive, so a single file holds the whole history.
func archiveExpiredLogs(filePath, zipName string, expired []fs.FileInfo) error {
	pathToZip := filepath.Join(filePath, zipName)
	var (
		logZip  *os.File
		prevZip *zip.ReadCloser
		err     error
	)
	if info, serr := os.Stat(pathToZip); serr == nil && !info.IsDir() {
		// Rebuild beside the old archive, the two swap at the end.
		if logZip, err = safeopen.OpenFileBeneath(filePath, "xlog-tmp.zip", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644); err != nil {
			return err
		}
		if prevZip, err = zip.OpenReader(pathToZip); err != nil {
			return err
		}
	} else if logZip, err = os.Create(pathToZip); err != nil {
		return err
	}

	zipWriter := zip.NewWriter(logZip)
	for _, info := range expired {
		archiveOneBackup(zipWriter, filePath, filepath.Base(info.Name()))
	}
	if prevZip != nil {
		prevZip.SetSecurityMode(prevZip.GetSecurityMode() | zip.MaximumSecurityMode)
		carryOverArchived(zipWriter, prevZip)
		if err := zipWriter.Flush(); err != nil {
			return err
		}
	}
	_ = zipWriter.Close()
	_ = logZip.Close()
	if prevZip == nil {
		return nil
	}
	_ = prevZip.Close()
	if err = os.Remove(pathToZip); err != nil {
		reportRotateError(err)
	}
	if err = os.Rename(filepath.Join(filePath, "xlog-tmp.zip"), pathToZip); err != nil {
		reportRotateError(err)
	}
	return nil
}

// archiveOneBackup copies one backup into the zip and removes the
// source only once the copy fully lands.
func archiveOneBackup(zipWriter *zip.Writer, filePath, filename string) {
	file, err := safeopen.OpenBeneath(filePath, filename)
	if err != nil {
		return
	}
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()
	zipFile, err := zipWriter.Create(filename)
	if err != nil {
		return
	}
	if _, err = io.Copy(zipFile, file); err != nil {
		return
	}
	_ = file.Close()
	file = nil
	if err = os.Remove(filepath.Join(filePath, filename)); err != nil {
		reportRotateError(err)
	}
}

// carryOverArchived replays the entries of the previous archive into
// the one being built, keeping name and method as they were.
func carryOverArchived(zipWriter *zip.Writer, prevZip *zip.ReadCloser) {
	for _, f := range prevZip.File {
		if f.Mode().IsDir() {
			continue
		}
		oldReader, err := f.Open()
		if err != nil {
			continue
		}
		header := &zip.FileHeader{Name: f.Name, Method: f.Method}
		if zipFile, herr := zipWriter.CreateHeader(header); herr == nil {
			_, _ = io.Copy(zipFile, oldReader)
		}
		_ = oldReader.Close()
	}
}
