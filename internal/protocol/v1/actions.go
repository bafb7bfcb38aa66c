package v1

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jg-phare/mcslauncherd/internal/filetransfer"
	"github.com/jg-phare/mcslauncherd/internal/instance"
	"github.com/jg-phare/mcslauncherd/internal/permission"
	"github.com/jg-phare/mcslauncherd/internal/retcode"
	"github.com/jg-phare/mcslauncherd/internal/sysinfo"
)

// Deps bundles the subsystems action handlers are wired against.
type Deps struct {
	Files     *filetransfer.Engine
	Instances *instance.Manager
}

// RegisterActions wires every built-in action onto d.
func RegisterActions(d *Dispatcher, deps Deps) {
	registerBaseActions(d)
	registerFileActions(d, deps.Files)
	registerInstanceActions(d, deps.Instances)
	registerEventActions(d)
}

func decode[T any](params json.RawMessage) (T, error) {
	var p T
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return p, retcode.WithMessage(retcode.ParamError, err.Error())
		}
	}
	return p, nil
}

func registerBaseActions(d *Dispatcher) {
	d.Register("ping", nil, func(_ *Context, _ json.RawMessage) (any, error) {
		return map[string]any{"time": time.Now().UnixMilli()}, nil
	})

	d.Register("get_permissions", nil, func(ctx *Context, _ json.RawMessage) (any, error) {
		return map[string]any{"permissions": ctx.Conn.Perms.Strings()}, nil
	})

	d.Register("get_system_info", permission.MustNew("system.info"), func(_ *Context, _ json.RawMessage) (any, error) {
		info, err := sysinfo.GetSystemInfo()
		if err != nil {
			return nil, retcode.WithMessage(retcode.UnexpectedError, err.Error())
		}
		return info, nil
	})

	d.Register("get_java_list", permission.MustNew("system.java"), func(_ *Context, _ json.RawMessage) (any, error) {
		list, err := sysinfo.GetJavaList(context.Background())
		if err != nil {
			return nil, retcode.WithMessage(retcode.UnexpectedError, err.Error())
		}
		return map[string]any{"javas": list}, nil
	})
}

// fileTransferError converts an engine failure into its protocol retcode.
func fileTransferError(err error) error {
	switch {
	case errors.Is(err, filetransfer.ErrSessionNotFound):
		return retcode.WithMessage(retcode.NotTransferring, err.Error())
	case errors.Is(err, filetransfer.ErrAlreadyTransferring):
		return retcode.WithMessage(retcode.AlreadyTransferring, err.Error())
	case errors.Is(err, filetransfer.ErrTooManyDownloads):
		return retcode.WithMessage(retcode.FileInUse, err.Error())
	case errors.Is(err, filetransfer.ErrOutOfRange):
		return retcode.WithMessage(retcode.ParamError, err.Error())
	case errors.Is(err, filetransfer.ErrHashMismatch):
		return retcode.WithMessage(retcode.UploadDownloadError, err.Error())
	case errors.Is(err, filetransfer.ErrIsADirectory):
		return retcode.WithMessage(retcode.ItsADirectory, err.Error())
	case errors.Is(err, os.ErrNotExist):
		return retcode.WithMessage(retcode.FileNotFound, err.Error())
	case errors.Is(err, os.ErrPermission):
		return retcode.WithMessage(retcode.FileAccessDenied, err.Error())
	default:
		return retcode.WithMessage(retcode.FileError, err.Error())
	}
}

var rangePattern = regexp.MustCompile(`^(\d+)\.\.(\d+)$`)

func parseRange(s string) (from, to uint64, err error) {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, retcode.WithMessage(retcode.RequestError, "malformed range "+strconv.Quote(s))
	}
	from, err = strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, 0, retcode.WithMessage(retcode.RequestError, err.Error())
	}
	to, err = strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return 0, 0, retcode.WithMessage(retcode.RequestError, err.Error())
	}
	return from, to, nil
}

func registerFileActions(d *Dispatcher, files *filetransfer.Engine) {
	d.Register("get_directory_info", permission.MustNew("file.info"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			Path string `json:"path"`
		}](params)
		if err != nil {
			return nil, err
		}
		entries, err := files.DirectoryInfo(p.Path)
		if err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"entries": entries}, nil
	})

	d.Register("get_file_info", permission.MustNew("file.info"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			Path string `json:"path"`
		}](params)
		if err != nil {
			return nil, err
		}
		info, err := files.FileInfo(p.Path)
		if err != nil {
			return nil, fileTransferError(err)
		}
		return info, nil
	})

	d.Register("file_upload_request", permission.MustNew("file.upload"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			Path      string `json:"path"`
			SHA1      string `json:"sha1"`
			ChunkSize uint64 `json:"chunk_size"`
			Size      uint64 `json:"size"`
		}](params)
		if err != nil {
			return nil, err
		}
		sess, err := files.UploadRequest(p.Path, p.Size, p.ChunkSize, p.SHA1)
		if err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"file_id": sess.ID}, nil
	})

	uploadChunk := func(files *filetransfer.Engine, id uuid.UUID, offset uint64, data []byte) (any, error) {
		done, received, err := files.UploadChunk(id, offset, data)
		if err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"done": done, "received": received}, nil
	}

	d.Register("file_upload_chunk", permission.MustNew("file.upload"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			FileID uuid.UUID `json:"file_id"`
			Offset uint64    `json:"offset"`
			Data   string    `json:"data"`
		}](params)
		if err != nil {
			return nil, err
		}
		return uploadChunk(files, p.FileID, p.Offset, filetransfer.DecodeText(p.Data))
	})

	d.Register("file_upload_chunk_raw", permission.MustNew("file.upload"), func(ctx *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			FileID uuid.UUID `json:"file_id"`
			Offset uint64    `json:"offset"`
		}](params)
		if err != nil {
			return nil, err
		}
		return uploadChunk(files, p.FileID, p.Offset, ctx.Attachment)
	})

	d.Register("file_upload_cancel", permission.MustNew("file.upload"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			FileID uuid.UUID `json:"file_id"`
		}](params)
		if err != nil {
			return nil, err
		}
		if err := files.UploadCancel(p.FileID); err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"done": true}, nil
	})

	d.Register("file_download_request", permission.MustNew("file.download"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			Path string `json:"path"`
		}](params)
		if err != nil {
			return nil, err
		}
		sess, err := files.DownloadRequest(context.Background(), p.Path)
		if err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"file_id": sess.ID, "size": sess.Size, "sha1": sess.SHA1}, nil
	})

	d.Register("file_download_range", permission.MustNew("file.download"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			FileID uuid.UUID `json:"file_id"`
			Range  string    `json:"range"`
		}](params)
		if err != nil {
			return nil, err
		}
		from, to, err := parseRange(p.Range)
		if err != nil {
			return nil, err
		}
		chunk, err := files.DownloadRange(p.FileID, from, to)
		if err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"content": filetransfer.EncodeText(chunk)}, nil
	})

	d.Register("file_download_close", permission.MustNew("file.download"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			FileID uuid.UUID `json:"file_id"`
		}](params)
		if err != nil {
			return nil, err
		}
		if err := files.DownloadClose(p.FileID); err != nil {
			return nil, fileTransferError(err)
		}
		return map[string]any{"done": true}, nil
	})
}

func lookupInstance(instances *instance.Manager, params json.RawMessage) (*instance.Instance, error) {
	p, err := decode[struct {
		UUID uuid.UUID `json:"uuid"`
	}](params)
	if err != nil {
		return nil, err
	}
	inst, ok := instances.Get(p.UUID)
	if !ok {
		return nil, retcode.WithMessage(retcode.InstanceNotFound, p.UUID.String())
	}
	return inst, nil
}

func registerInstanceActions(d *Dispatcher, instances *instance.Manager) {
	d.Register("add_instance", permission.MustNew("instance.add"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			SourceType string `json:"source_type"`
			instance.Config
		}](params)
		if err != nil {
			return nil, err
		}
		if p.Config.UUID == uuid.Nil {
			p.Config.UUID = uuid.New()
		}
		inst, err := instances.Add(p.SourceType, p.Config)
		if err != nil {
			return nil, retcode.WithMessage(retcode.InstanceError, err.Error())
		}
		return map[string]any{"uuid": inst.Config().UUID}, nil
	})

	d.Register("remove_instance", permission.MustNew("instance.remove"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			UUID uuid.UUID `json:"uuid"`
		}](params)
		if err != nil {
			return nil, err
		}
		if err := instances.Remove(p.UUID); err != nil {
			return nil, retcode.WithMessage(retcode.InstanceNotFound, err.Error())
		}
		return map[string]any{"done": true}, nil
	})

	d.Register("start_instance", permission.MustNew("instance.start"), func(_ *Context, params json.RawMessage) (any, error) {
		inst, err := lookupInstance(instances, params)
		if err != nil {
			return nil, err
		}
		if err := inst.Start(); err != nil {
			return nil, retcode.WithMessage(retcode.InstanceActionError, err.Error())
		}
		return map[string]any{"done": true}, nil
	})

	d.Register("stop_instance", permission.MustNew("instance.stop"), func(_ *Context, params json.RawMessage) (any, error) {
		inst, err := lookupInstance(instances, params)
		if err != nil {
			return nil, err
		}
		if err := inst.Stop(); err != nil {
			return nil, retcode.WithMessage(retcode.InstanceActionError, err.Error())
		}
		return map[string]any{"done": true}, nil
	})

	d.Register("kill_instance", permission.MustNew("instance.kill"), func(_ *Context, params json.RawMessage) (any, error) {
		inst, err := lookupInstance(instances, params)
		if err != nil {
			return nil, err
		}
		if err := inst.Kill(); err != nil {
			return nil, retcode.WithMessage(retcode.ProcessError, err.Error())
		}
		return map[string]any{"done": true}, nil
	})

	d.Register("send_to_instance", permission.MustNew("instance.send"), func(_ *Context, params json.RawMessage) (any, error) {
		p, err := decode[struct {
			UUID    uuid.UUID `json:"uuid"`
			Message string    `json:"message"`
		}](params)
		if err != nil {
			return nil, err
		}
		inst, ok := instances.Get(p.UUID)
		if !ok {
			return nil, retcode.WithMessage(retcode.InstanceNotFound, p.UUID.String())
		}
		if err := inst.Send(p.Message); err != nil {
			return nil, retcode.WithMessage(retcode.BadInstanceState, err.Error())
		}
		return map[string]any{"done": true}, nil
	})

	d.Register("get_instance_report", permission.MustNew("instance.report"), func(_ *Context, params json.RawMessage) (any, error) {
		inst, err := lookupInstance(instances, params)
		if err != nil {
			return nil, err
		}
		return inst.Report(), nil
	})

	d.Register("get_all_reports", permission.MustNew("instance.report"), func(_ *Context, _ json.RawMessage) (any, error) {
		return instances.TotalReport(), nil
	})
}

func registerEventActions(d *Dispatcher) {
	// The actual subscribe/unsubscribe bookkeeping lives on the connection
	// (internal/wsconn owns each connection's events.Subscription, since it's
	// the one that outlives individual requests and drains the filtered
	// channel into the socket). These two entries validate params and
	// acknowledge; wsconn intercepts both actions on the request path and
	// updates the subscription before the response goes out.
	handler := func(_ *Context, params json.RawMessage) (any, error) {
		if _, err := decode[struct {
			Event string `json:"event"`
		}](params); err != nil {
			return nil, err
		}
		return map[string]any{"done": true}, nil
	}
	d.Register("subscribe_event", permission.MustNew("event.subscribe"), handler)
	d.Register("unsubscribe_event", permission.MustNew("event.subscribe"), handler)
}
