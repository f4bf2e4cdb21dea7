package dashscope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duplexkit/voice-core/core/dashscope"
	"github.com/duplexkit/voice-core/core/speechtotext"
	"github.com/duplexkit/voice-core/internal/utils"
)

// newTaskServer upgrades one connection and hands it to handler. It returns
// the websocket endpoint to dial.
func newTaskServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "bearer test-key" {
			t.Errorf("expected bearer credential on upgrade, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func writeServerEvent(t *testing.T, conn *websocket.Conn, event, taskID string, sentence *dashscope.Sentence) {
	t.Helper()
	msg := dashscope.InboundMessage{Header: dashscope.Header{Event: event, TaskID: taskID}}
	msg.Payload.Output.Sentence = sentence
	if err := conn.WriteJSON(msg); err != nil {
		t.Errorf("failed to write %s event: %v", event, err)
	}
}

func TestRecognizerPreservesFrameOrderAcrossBuffering(t *testing.T) {
	runTaskReceived := make(chan string, 1)
	release := make(chan struct{})
	framesReceived := make(chan [][]byte, 1)

	endpoint := newTaskServer(t, func(conn *websocket.Conn) {
		var runTask dashscope.OutboundMessage
		if err := conn.ReadJSON(&runTask); err != nil {
			t.Errorf("failed to read run-task: %v", err)
			return
		}
		if runTask.Header.Action != dashscope.ActionRunTask {
			t.Errorf("expected run-task first, got %q", runTask.Header.Action)
		}
		if runTask.Header.Streaming != dashscope.StreamingDuplex {
			t.Errorf("expected duplex streaming, got %q", runTask.Header.Streaming)
		}
		if runTask.Payload.Function != "recognition" {
			t.Errorf("expected recognition function, got %q", runTask.Payload.Function)
		}
		runTaskReceived <- runTask.Header.TaskID

		// Acknowledgment is held back so frames pile up client-side.
		<-release
		writeServerEvent(t, conn, dashscope.EventTaskStarted, runTask.Header.TaskID, nil)

		var frames [][]byte
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				frames = append(frames, payload)
				if len(frames) == 4 {
					framesReceived <- frames
				}
				continue
			}
			// The only text message after the frames is finish-task.
			writeServerEvent(t, conn, dashscope.EventTaskFinished, runTask.Header.TaskID,
				&dashscope.Sentence{Text: "hello", EndTime: utils.Ptr(int64(1200))})
			return
		}
	})

	recognizer := NewRecognizer(dashscope.StaticCredentials("test-key"), WithEndpoint(endpoint))

	finals := make(chan string, 1)
	startErr := make(chan error, 1)
	go func() {
		startErr <- recognizer.Start(context.Background(),
			speechtotext.WithTranscriptionCallback(func(transcript string) { finals <- transcript }),
		)
	}()

	select {
	case <-runTaskReceived:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for run-task")
	}

	// The task is not acknowledged yet; these frames must be queued in
	// arrival order, and the empty frame dropped.
	for _, frame := range [][]byte{{1}, {2}, {3}} {
		if err := recognizer.SendAudio(frame); err != nil {
			t.Fatalf("expected queued send to succeed, got %v", err)
		}
	}
	if err := recognizer.SendAudio(nil); err != nil {
		t.Fatalf("expected empty frame to be dropped silently, got %v", err)
	}

	close(release)
	select {
	case err := <-startErr:
		if err != nil {
			t.Fatalf("expected start to succeed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for task-started")
	}

	if err := recognizer.SendAudio([]byte{4}); err != nil {
		t.Fatalf("expected direct send to succeed, got %v", err)
	}

	select {
	case frames := <-framesReceived:
		for i, want := range []byte{1, 2, 3, 4} {
			if len(frames[i]) != 1 || frames[i][0] != want {
				t.Fatalf("expected frame %d to carry %d, got %v", i, want, frames[i])
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for forwarded frames")
	}

	if err := recognizer.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	select {
	case transcript := <-finals:
		if transcript != "hello" {
			t.Fatalf("expected final transcript %q, got %q", "hello", transcript)
		}
	default:
		t.Fatalf("expected final transcript before stop returned")
	}
}

func TestRecognizerRejectsOverlappingTasks(t *testing.T) {
	endpoint := newTaskServer(t, func(conn *websocket.Conn) {
		var runTask dashscope.OutboundMessage
		if err := conn.ReadJSON(&runTask); err != nil {
			return
		}
		writeServerEvent(t, conn, dashscope.EventTaskStarted, runTask.Header.TaskID, nil)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	recognizer := NewRecognizer(dashscope.StaticCredentials("test-key"), WithEndpoint(endpoint))
	if err := recognizer.Start(context.Background()); err != nil {
		t.Fatalf("expected first start to succeed, got %v", err)
	}
	defer recognizer.Close()

	if err := recognizer.Start(context.Background()); !errors.Is(err, dashscope.ErrTaskActive) {
		t.Fatalf("expected %v for overlapping task, got %v", dashscope.ErrTaskActive, err)
	}
}

func TestRecognizerFailsWhenClosedBeforeReady(t *testing.T) {
	endpoint := newTaskServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// Drop the connection without acknowledging the task.
	})

	recognizer := NewRecognizer(dashscope.StaticCredentials("test-key"), WithEndpoint(endpoint))
	err := recognizer.Start(context.Background())
	if !errors.Is(err, dashscope.ErrClosedBeforeReady) {
		t.Fatalf("expected %v, got %v", dashscope.ErrClosedBeforeReady, err)
	}
}

func TestRecognizerSurfacesTaskFailure(t *testing.T) {
	endpoint := newTaskServer(t, func(conn *websocket.Conn) {
		var runTask dashscope.OutboundMessage
		if err := conn.ReadJSON(&runTask); err != nil {
			return
		}
		writeServerEvent(t, conn, dashscope.EventTaskStarted, runTask.Header.TaskID, nil)

		// Wait for finish-task, then fail the task instead of finishing it.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		msg := dashscope.InboundMessage{Header: dashscope.Header{
			Event:   dashscope.EventTaskFailed,
			TaskID:  runTask.Header.TaskID,
			Code:    "AudioDecodeFailed",
			Message: "audio format not supported",
		}}
		_ = conn.WriteJSON(msg)
	})

	recognizer := NewRecognizer(dashscope.StaticCredentials("test-key"), WithEndpoint(endpoint))

	callbackErrs := make(chan error, 1)
	if err := recognizer.Start(context.Background(),
		speechtotext.WithErrorCallback(func(err error) { callbackErrs <- err }),
	); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	err := recognizer.Stop(context.Background())
	var taskErr *dashscope.TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected a task error from stop, got %v", err)
	}
	if taskErr.Code != "AudioDecodeFailed" || taskErr.Detail != "audio format not supported" {
		t.Fatalf("expected server-provided detail, got %+v", taskErr)
	}

	select {
	case <-callbackErrs:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the failure to reach the error callback")
	}
}

func TestRecognizerFallsBackToLastPartialResult(t *testing.T) {
	endpoint := newTaskServer(t, func(conn *websocket.Conn) {
		var runTask dashscope.OutboundMessage
		if err := conn.ReadJSON(&runTask); err != nil {
			return
		}
		writeServerEvent(t, conn, dashscope.EventTaskStarted, runTask.Header.TaskID, nil)
		writeServerEvent(t, conn, dashscope.EventResultGenerated, runTask.Header.TaskID,
			&dashscope.Sentence{Text: "你好"})
		writeServerEvent(t, conn, dashscope.EventResultGenerated, runTask.Header.TaskID,
			&dashscope.Sentence{Text: "你好，我是"})

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// task-finished without a sentence payload.
		writeServerEvent(t, conn, dashscope.EventTaskFinished, runTask.Header.TaskID, nil)
	})

	recognizer := NewRecognizer(dashscope.StaticCredentials("test-key"), WithEndpoint(endpoint))

	var mu sync.Mutex
	var partials []string
	finals := make(chan string, 2)
	if err := recognizer.Start(context.Background(),
		speechtotext.WithPartialTranscriptionCallback(func(transcript string) {
			mu.Lock()
			partials = append(partials, transcript)
			mu.Unlock()
		}),
		speechtotext.WithTranscriptionCallback(func(transcript string) { finals <- transcript }),
	); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	if err := recognizer.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}

	select {
	case transcript := <-finals:
		if transcript != "你好，我是" {
			t.Fatalf("expected cached partial as final, got %q", transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for final transcript")
	}
	select {
	case transcript := <-finals:
		t.Fatalf("expected exactly one final transcript, also got %q", transcript)
	default:
	}

	mu.Lock()
	defer mu.Unlock()
	if len(partials) != 2 || partials[0] != "你好" || partials[1] != "你好，我是" {
		t.Fatalf("expected partials in order, got %q", partials)
	}
}
