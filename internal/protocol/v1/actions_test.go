package v1

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jg-phare/mcslauncherd/internal/filetransfer"
	"github.com/jg-phare/mcslauncherd/internal/instance"
	"github.com/jg-phare/mcslauncherd/internal/retcode"
)

func testDispatcher(t *testing.T) (*Dispatcher, *filetransfer.Engine) {
	t.Helper()
	files, err := filetransfer.New(t.TempDir(), nil, 1)
	require.NoError(t, err)
	instances, err := instance.NewManager(filepath.Join(files.Root(), filetransfer.InstancesDir), instance.NewFactory())
	require.NoError(t, err)
	t.Cleanup(func() { instances.Close() })

	d := NewDispatcher()
	RegisterActions(d, Deps{Files: files, Instances: instances})
	return d, files
}

func call(t *testing.T, d *Dispatcher, action, id string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	req, err := json.Marshal(Request{Action: action, Params: raw, ID: id})
	require.NoError(t, err)
	return decodeResponse(t, d.HandleText(testContext(t, "**"), req))
}

func TestPingRespondsOK(t *testing.T) {
	d, _ := testDispatcher(t)
	resp := call(t, d, "ping", "p1", nil)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "p1", resp.ID)
}

func TestGetPermissions(t *testing.T) {
	d, _ := testDispatcher(t)
	resp := call(t, d, "get_permissions", "p2", nil)
	var data struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, []string{"**"}, data.Permissions)
}

func TestUploadLifecycleOverProtocol(t *testing.T) {
	d, files := testDispatcher(t)

	// High bytes stay below the UTF-16 surrogate range so the text-mode
	// encoding is lossless for this payload.
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i % 97)
	}
	digest := sha1.Sum(payload)

	resp := call(t, d, "file_upload_request", "u1", map[string]any{
		"path":       "uploads/blob.bin",
		"size":       1000,
		"chunk_size": 256,
		"sha1":       hex.EncodeToString(digest[:]),
	})
	require.Equal(t, "ok", resp.Status, resp.Message)
	var reqData struct {
		FileID string `json:"file_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &reqData))

	ranges := [][2]int{{0, 256}, {512, 768}, {256, 512}, {768, 1000}}
	for i, r := range ranges {
		resp := call(t, d, "file_upload_chunk", fmt.Sprintf("c%d", i), map[string]any{
			"file_id": reqData.FileID,
			"offset":  r[0],
			"data":    filetransfer.EncodeText(payload[r[0]:r[1]]),
		})
		require.Equal(t, "ok", resp.Status, resp.Message)
		var chunkData struct {
			Done     bool   `json:"done"`
			Received uint64 `json:"received"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &chunkData))
		require.Equal(t, i == len(ranges)-1, chunkData.Done)
	}

	written, err := os.ReadFile(filepath.Join(files.Root(), "uploads", "blob.bin"))
	require.NoError(t, err)
	require.Equal(t, payload, written)
}

func TestUploadChunkRawOverBinaryFrame(t *testing.T) {
	d, files := testDispatcher(t)

	resp := call(t, d, "file_upload_request", "u1", map[string]any{
		"path": "raw.bin",
		"size": 3,
	})
	require.Equal(t, "ok", resp.Status, resp.Message)
	var reqData struct {
		FileID string `json:"file_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &reqData))

	body, err := json.Marshal(Request{
		Action: "file_upload_chunk_raw",
		Params: json.RawMessage(fmt.Sprintf(`{"file_id":%q,"offset":0}`, reqData.FileID)),
		ID:     "r1",
	})
	require.NoError(t, err)
	frame := EncodeBinaryFrame(body, []byte{9, 8, 7})

	out := decodeResponse(t, d.HandleBinary(testContext(t, "**"), frame))
	require.Equal(t, "ok", out.Status, out.Message)
	var chunkData struct {
		Done bool `json:"done"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &chunkData))
	require.True(t, chunkData.Done)

	written, err := os.ReadFile(filepath.Join(files.Root(), "raw.bin"))
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, written)
}

func TestDownloadLifecycleOverProtocol(t *testing.T) {
	d, files := testDispatcher(t)
	content := []byte("0123456789")
	require.NoError(t, os.WriteFile(filepath.Join(files.Root(), "dl.txt"), content, 0o644))

	resp := call(t, d, "file_download_request", "d1", map[string]any{"path": "dl.txt"})
	require.Equal(t, "ok", resp.Status, resp.Message)
	var reqData struct {
		FileID string `json:"file_id"`
		Size   uint64 `json:"size"`
		SHA1   string `json:"sha1"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &reqData))
	require.Equal(t, uint64(10), reqData.Size)
	require.Len(t, reqData.SHA1, 40)

	resp = call(t, d, "file_download_range", "d2", map[string]any{
		"file_id": reqData.FileID,
		"range":   "2..5",
	})
	require.Equal(t, "ok", resp.Status, resp.Message)
	var rangeData struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rangeData))
	decoded := filetransfer.DecodeText(rangeData.Content)
	// 3 bytes round up to 4 through the UTF-16 padding.
	require.Equal(t, []byte{'2', '3', '4', 0}, decoded)

	resp = call(t, d, "file_download_range", "d3", map[string]any{
		"file_id": reqData.FileID,
		"range":   "5-9",
	})
	require.Equal(t, int(retcode.RequestError), resp.RetCode)
	require.Equal(t, "d3", resp.ID)

	resp = call(t, d, "file_download_close", "d4", map[string]any{"file_id": reqData.FileID})
	require.Equal(t, "ok", resp.Status)
}

func TestDownloadEscapeRejected(t *testing.T) {
	d, _ := testDispatcher(t)
	resp := call(t, d, "file_download_request", "d1", map[string]any{"path": "../secrets"})
	require.Equal(t, "error", resp.Status)
	require.Equal(t, "d1", resp.ID)
}

func TestInstanceActionsOverProtocol(t *testing.T) {
	d, _ := testDispatcher(t)

	resp := call(t, d, "add_instance", "i1", map[string]any{
		"source_type": "core",
		"name":        "proto-server",
		"tag":         "universal",
		"target":      "/bin/true",
		"targetKind":  "executable",
	})
	require.Equal(t, "ok", resp.Status, resp.Message)
	var addData struct {
		UUID string `json:"uuid"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &addData))

	resp = call(t, d, "get_instance_report", "i2", map[string]any{"uuid": addData.UUID})
	require.Equal(t, "ok", resp.Status, resp.Message)
	var report instance.Report
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	require.Equal(t, "stopped", report.Status)
	require.Equal(t, "proto-server", report.Config.Name)

	resp = call(t, d, "get_all_reports", "i3", nil)
	require.Equal(t, "ok", resp.Status)

	resp = call(t, d, "remove_instance", "i4", map[string]any{"uuid": addData.UUID})
	require.Equal(t, "ok", resp.Status, resp.Message)

	resp = call(t, d, "get_instance_report", "i5", map[string]any{"uuid": addData.UUID})
	require.Equal(t, int(retcode.InstanceNotFound), resp.RetCode)
}
