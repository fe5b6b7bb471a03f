package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/events"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/recognition"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/vocabulary"
)

type recordingEmitter struct {
	mu      sync.Mutex
	results []events.RecognitionEvent
	words   []events.WordEvent
}

func (r *recordingEmitter) PublishResult(_ context.Context, e events.RecognitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, e)
	return nil
}

func (r *recordingEmitter) PublishWord(_ context.Context, e events.WordEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.words = append(r.words, e)
	return nil
}

func (r *recordingEmitter) wordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.words)
}

func (r *recordingEmitter) resultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

type fixture struct {
	detector   *detector.MockDetector
	classifier *classifier.Mock
	library    *gesture.Library
	sessions   *session.Manager
	events     *recordingEmitter
	ts         *httptest.Server
}

func newFixture(t *testing.T, loaded bool) *fixture {
	t.Helper()

	f := &fixture{
		detector:   detector.NewMockDetector(),
		classifier: classifier.NewMock(),
		library:    gesture.NewLibrary(),
		sessions:   session.NewManager(),
		events:     &recordingEmitter{},
	}

	var inner classifier.Classifier
	if loaded {
		inner = f.classifier
	}
	guarded := classifier.NewGuarded(inner, "cpu", nil)
	pipeline := recognition.NewPipeline(
		f.detector,
		guarded,
		recognition.NewArbiter(gesture.NewMatcher(f.library), 0),
		capture.DefaultPadding,
	)
	registry := vocabulary.New(vocabulary.Config{
		Library:    f.library,
		Landmarker: pipeline,
		Events:     f.events,
	})

	srv := New(Config{
		Recognizer: pipeline,
		Classifier: guarded,
		Sessions:   f.sessions,
		Registry:   registry,
		Events:     f.events,
		ModelName:  "alphabet-test",
	})
	f.ts = httptest.NewServer(srv)
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) showHand(lm detector.HandLandmarks) {
	f.detector.SetHands([]detector.HandLandmarks{lm})
}

func jpegFrame(t *testing.T) []byte {
	t.Helper()
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()
	data, err := capture.EncodeJPEG(mat)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	return data
}

func multipartBody(t *testing.T, fields map[string]string, files ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for i, data := range files {
		part, err := mw.CreateFormFile("file", "frame"+string(rune('0'+i))+".jpg")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func (f *fixture) post(t *testing.T, path string, fields map[string]string, files ...[]byte) (*http.Response, map[string]any) {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	resp, err := f.ts.Client().Post(f.ts.URL+path, contentType, body)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, decoded
}

func TestAPI_LetterPredict(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	f.classifier.Push(classifier.Prediction{Label: "B", Confidence: 0.9})

	resp, body := f.post(t, "/api/sign-to-text/predict", nil, jpegFrame(t))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["prediction"] != "B" || body["prediction_type"] != "letter" || body["has_hand"] != true {
		t.Errorf("unexpected body %v", body)
	}
	if body["debug_image"] == "" || body["hand_roi"] == nil {
		t.Error("expected debug_image and hand_roi")
	}
	if _, ok := body["alternatives"]; ok {
		t.Error("letter endpoint must not report alternatives")
	}
}

func TestAPI_LetterPredict_NoHand(t *testing.T) {
	f := newFixture(t, true)

	_, body := f.post(t, "/api/sign-to-text/predict", nil, jpegFrame(t))

	if body["prediction"] != "None" || body["prediction_type"] != "none" || body["has_hand"] != false {
		t.Errorf("unexpected body %v", body)
	}
	if body["confidence"] != 0.0 {
		t.Errorf("confidence = %v, want 0", body["confidence"])
	}
	if body["hand_roi"] != nil {
		t.Errorf("hand_roi = %v, want null", body["hand_roi"])
	}
}

func TestAPI_SingleShotThreshold(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	f.classifier.Push(classifier.Prediction{Label: "C", Confidence: 0.3})

	_, body := f.post(t, "/api/sign-to-text/predict", nil, jpegFrame(t))

	if body["prediction"] != "Uncertain" {
		t.Errorf("prediction = %v, want Uncertain below 0.4", body["prediction"])
	}
}

func TestAPI_SessionSmoothing(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	f.classifier.Push(
		classifier.Prediction{Label: "A", Confidence: 0.9},
		classifier.Prediction{Label: "A", Confidence: 0.9},
		classifier.Prediction{Label: "B", Confidence: 0.5},
	)
	fields := map[string]string{"session_id": "web-1"}

	f.post(t, "/api/sign-to-text/predict", fields, jpegFrame(t))
	f.post(t, "/api/sign-to-text/predict", fields, jpegFrame(t))
	_, body := f.post(t, "/api/sign-to-text/predict", fields, jpegFrame(t))

	// window: A .9, A .9, B .5 -> A with 1.8/3 = 0.6 < 0.7
	if body["prediction"] != "Uncertain" {
		t.Errorf("prediction = %v, want Uncertain", body["prediction"])
	}
	if body["session_id"] != "web-1" {
		t.Errorf("session_id = %v", body["session_id"])
	}
	if f.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", f.sessions.Len())
	}
}

func TestAPI_WordPredict(t *testing.T) {
	f := newFixture(t, true)
	helloHand := detector.HelloLandmarks()
	if err := f.library.Register("hello", helloHand.Points); err != nil {
		t.Fatal(err)
	}
	if err := f.library.Register("fist", detector.LetterALandmarks().Points); err != nil {
		t.Fatal(err)
	}
	f.showHand(helloHand)

	resp, body := f.post(t, "/csl-predict", nil, jpegFrame(t))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["prediction"] != "hello" || body["prediction_type"] != "word" {
		t.Errorf("unexpected body %v", body)
	}
	if body["confidence"] != 1.0 {
		t.Errorf("confidence = %v, want 1", body["confidence"])
	}
	if _, ok := body["alternatives"].([]any); !ok {
		t.Errorf("alternatives = %v, want list", body["alternatives"])
	}
	if f.classifier.Calls() != 0 {
		t.Error("word match must not run the classifier")
	}
}

func TestAPI_PredictByMode(t *testing.T) {
	f := newFixture(t, true)
	helloHand := detector.HelloLandmarks()
	f.library.Register("hello", helloHand.Points)
	f.showHand(helloHand)
	f.classifier.Push(classifier.Prediction{Label: "B", Confidence: 0.9})

	_, word := f.post(t, "/api/predict?mode=word", nil, jpegFrame(t))
	if word["prediction"] != "hello" {
		t.Errorf("mode=word prediction = %v", word["prediction"])
	}

	_, letter := f.post(t, "/api/predict", nil, jpegFrame(t))
	if letter["prediction"] != "B" {
		t.Errorf("default mode prediction = %v", letter["prediction"])
	}

	resp, _ := f.post(t, "/api/predict?mode=gesture", nil, jpegFrame(t))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAPI_PredictErrors(t *testing.T) {
	t.Run("invalid image", func(t *testing.T) {
		f := newFixture(t, true)
		resp, body := f.post(t, "/api/sign-to-text/predict", nil, []byte("not a jpeg"))
		if resp.StatusCode != http.StatusBadRequest || body["error"] != "Invalid image data" {
			t.Errorf("status = %d body = %v", resp.StatusCode, body)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t, true)
		resp, _ := f.post(t, "/api/sign-to-text/predict", map[string]string{"session_id": "x"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("model not loaded", func(t *testing.T) {
		f := newFixture(t, false)
		for _, path := range []string{"/api/sign-to-text/predict", "/csl-predict"} {
			resp, body := f.post(t, path, nil, jpegFrame(t))
			if resp.StatusCode != http.StatusServiceUnavailable {
				t.Errorf("%s status = %d, want %d", path, resp.StatusCode, http.StatusServiceUnavailable)
			}
			if body["error"] == nil || body["message"] == nil {
				t.Errorf("%s body = %v", path, body)
			}
		}
	})
}

func TestAPI_Info(t *testing.T) {
	f := newFixture(t, true)

	resp, err := f.ts.Client().Get(f.ts.URL + "/api/sign-to-text")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var info struct {
		Status    string `json:"status"`
		Model     string `json:"model"`
		Device    string `json:"device"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}
	json.NewDecoder(resp.Body).Decode(&info)

	if info.Status != "ok" || info.Model != "alphabet-test" || info.Device != "cpu" {
		t.Errorf("unexpected info %+v", info)
	}
	if len(info.Endpoints) == 0 {
		t.Error("expected endpoints")
	}
}

func TestAPI_WordWorkflow(t *testing.T) {
	f := newFixture(t, true)

	// 1. No hand: rejected with success=false
	resp, body := f.post(t, "/upload-word?word_name=hello", nil, jpegFrame(t))
	if resp.StatusCode != http.StatusOK || body["success"] != false {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if body["message"] != "No hand detected in the image" {
		t.Errorf("message = %v", body["message"])
	}

	// 2. Register from two images
	f.showHand(detector.HelloLandmarks())
	_, body = f.post(t, "/upload-word?word_name=hello", nil, jpegFrame(t), jpegFrame(t))
	if body["success"] != true || body["total_words"] != 1.0 {
		t.Fatalf("register body = %v", body)
	}

	// 3. Undecodable upload
	_, body = f.post(t, "/upload-word?word_name=bye", nil, []byte("garbage"))
	if body["success"] != false || body["message"] != "Failed to decode image" {
		t.Errorf("garbage body = %v", body)
	}

	// 4. List words
	resp2, err := f.ts.Client().Get(f.ts.URL + "/words")
	if err != nil {
		t.Fatal(err)
	}
	var listed struct {
		Words []string `json:"words"`
		Count int      `json:"count"`
	}
	json.NewDecoder(resp2.Body).Decode(&listed)
	resp2.Body.Close()

	if listed.Count != 1 || len(listed.Words) != 1 || listed.Words[0] != "hello" {
		t.Errorf("listed = %+v", listed)
	}

	// 5. The registered word is now recognized
	_, body = f.post(t, "/csl-predict", nil, jpegFrame(t))
	if body["prediction"] != "hello" {
		t.Errorf("prediction after registration = %v", body["prediction"])
	}

	if n := f.events.wordCount(); n != 1 {
		t.Errorf("word events = %d, want 1", n)
	}
}

func (f *fixture) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, decoded
}

func TestAPI_WordLookupAndDelete(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.HelloLandmarks())
	if _, body := f.post(t, "/upload-word?word_name=hello", nil, jpegFrame(t)); body["success"] != true {
		t.Fatalf("register body = %v", body)
	}

	resp, body := f.do(t, http.MethodGet, "/words/hello")
	if resp.StatusCode != http.StatusOK || body["word"] != "hello" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if lm, _ := body["landmarks"].([]any); len(lm) != detector.NumLandmarks {
		t.Errorf("landmarks = %d, want %d", len(lm), detector.NumLandmarks)
	}

	// Without a store there is no snapshot to serve.
	resp, _ = f.do(t, http.MethodGet, "/words/hello/image")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("image status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	resp, body = f.do(t, http.MethodDelete, "/words/hello")
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("delete status = %d body = %v", resp.StatusCode, body)
	}
	if f.library.Len() != 0 {
		t.Errorf("library still holds %v", f.library.List())
	}

	resp, body = f.do(t, http.MethodGet, "/words/hello")
	if resp.StatusCode != http.StatusNotFound || body["error"] != "word not found" {
		t.Errorf("lookup after delete: status = %d body = %v", resp.StatusCode, body)
	}
	resp, _ = f.do(t, http.MethodDelete, "/words/hello")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	_, body = f.post(t, "/csl-predict", nil, jpegFrame(t))
	if body["prediction"] == "hello" {
		t.Error("deleted word is still recognized")
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	f := newFixture(t, true)

	resp, err := f.ts.Client().Get(f.ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status     string `json:"status"`
		Uptime     string `json:"uptime"`
		Classifier struct {
			Loaded bool `json:"loaded"`
		} `json:"classifier"`
		Sessions int `json:"sessions"`
		Words    int `json:"words"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
	if !health.Classifier.Loaded {
		t.Error("expected classifier loaded")
	}
}

// Stream tests

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRecord(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var record map[string]any
	if err := conn.ReadJSON(&record); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return record
}

func sendFrame(t *testing.T, conn *websocket.Conn, data []byte) map[string]any {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	return readRecord(t, conn)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_Handshake(t *testing.T) {
	f := newFixture(t, true)
	conn := f.dial(t, "/ws/call/CA123")

	status := readRecord(t, conn)
	if status["type"] != TypeConnectionStatus || status["status"] != "connected" || status["call_sid"] != "CA123" {
		t.Errorf("connection status = %v", status)
	}

	model := readRecord(t, conn)
	if model["type"] != TypeModelStatus || model["loaded"] != true || model["device"] != "cpu" {
		t.Errorf("model status = %v", model)
	}

	waitFor(t, func() bool { _, ok := f.sessions.Get("CA123"); return ok })
}

func TestStream_GeneratedID(t *testing.T) {
	f := newFixture(t, true)
	conn := f.dial(t, "/ws/sign")

	status := readRecord(t, conn)
	sid, _ := status["call_sid"].(string)
	if len(sid) != 36 {
		t.Errorf("call_sid = %q, want a uuid", sid)
	}
}

func TestStream_SmoothsLetters(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	f.classifier.Push(
		classifier.Prediction{Label: "A", Confidence: 0.9},
		classifier.Prediction{Label: "A", Confidence: 0.9},
		classifier.Prediction{Label: "B", Confidence: 0.6},
	)
	conn := f.dial(t, "/ws/call/CA1")
	readRecord(t, conn)
	readRecord(t, conn)
	frame := jpegFrame(t)

	first := sendFrame(t, conn, frame)
	if first["type"] != TypeResult || first["letter"] != "A" || first["prediction_type"] != "letter" || first["has_hand"] != true {
		t.Errorf("first = %v", first)
	}
	sendFrame(t, conn, frame)

	// window: A .9, A .9, B .6 -> A 1.8/3 = 0.6 < 0.7
	third := sendFrame(t, conn, frame)
	if third["letter"] != "Uncertain" {
		t.Errorf("third letter = %v, want Uncertain", third["letter"])
	}

	if n := f.events.resultCount(); n != 2 {
		t.Errorf("published results = %d, want 2", n)
	}
}

func TestStream_NoHand(t *testing.T) {
	f := newFixture(t, true)
	conn := f.dial(t, "/ws/call/CA1")
	readRecord(t, conn)
	readRecord(t, conn)

	record := sendFrame(t, conn, jpegFrame(t))
	if record["letter"] != "None" || record["prediction_type"] != "none" || record["has_hand"] != false {
		t.Errorf("record = %v", record)
	}
	if f.events.resultCount() != 0 {
		t.Error("no-hand results must not be published")
	}
}

func TestStream_WordMode(t *testing.T) {
	f := newFixture(t, true)
	helloHand := detector.HelloLandmarks()
	f.library.Register("hello", helloHand.Points)
	f.showHand(helloHand)

	conn := f.dial(t, "/ws/call/CA1?mode=word")
	readRecord(t, conn)
	readRecord(t, conn)

	record := sendFrame(t, conn, jpegFrame(t))
	if record["letter"] != "hello" || record["prediction_type"] != "word" {
		t.Errorf("record = %v", record)
	}
}

func TestStream_InBandErrors(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	conn := f.dial(t, "/ws/call/CA1")
	readRecord(t, conn)
	readRecord(t, conn)

	bad := sendFrame(t, conn, []byte("garbage"))
	if bad["type"] != TypeError || bad["message"] != "Invalid image data" {
		t.Errorf("bad frame record = %v", bad)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	text := readRecord(t, conn)
	if text["type"] != TypeError {
		t.Errorf("text record = %v", text)
	}

	// the loop continues after errors
	good := sendFrame(t, conn, jpegFrame(t))
	if good["type"] != TypeResult {
		t.Errorf("good record = %v", good)
	}
}

func TestStream_ModelNotLoaded(t *testing.T) {
	f := newFixture(t, false)
	f.showHand(detector.LetterALandmarks())
	conn := f.dial(t, "/ws/call/CA1")
	readRecord(t, conn)

	model := readRecord(t, conn)
	if model["loaded"] != false {
		t.Errorf("model status = %v", model)
	}

	record := sendFrame(t, conn, jpegFrame(t))
	if record["type"] != TypeError {
		t.Errorf("record = %v", record)
	}
}

func TestStream_DisconnectClosesSession(t *testing.T) {
	f := newFixture(t, true)
	conn := f.dial(t, "/ws/call/CA1")
	readRecord(t, conn)
	readRecord(t, conn)

	s, ok := f.sessions.Get("CA1")
	if !ok {
		t.Fatal("expected session while connected")
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool { return f.sessions.Len() == 0 })
	if !s.Closed() {
		t.Error("expected session to be closed")
	}
}

func TestStream_ReconnectStartsFresh(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	f.classifier.Push(classifier.Prediction{Label: "A", Confidence: 0.9})

	first := f.dial(t, "/ws/call/CA1")
	readRecord(t, first)
	readRecord(t, first)
	sendFrame(t, first, jpegFrame(t))
	first.Close()
	waitFor(t, func() bool { return f.sessions.Len() == 0 })

	f.classifier.Push(classifier.Prediction{Label: "C", Confidence: 0.8})
	second := f.dial(t, "/ws/call/CA1")
	readRecord(t, second)
	readRecord(t, second)

	record := sendFrame(t, second, jpegFrame(t))
	if record["letter"] != "C" {
		t.Errorf("letter = %v, want C from a fresh window", record["letter"])
	}
}

func TestStream_SurvivesIdleSweep(t *testing.T) {
	f := newFixture(t, true)
	f.showHand(detector.LetterALandmarks())
	f.classifier.Push(classifier.Prediction{Label: "A", Confidence: 0.9})

	conn := f.dial(t, "/ws/call/CA1")
	readRecord(t, conn)
	readRecord(t, conn)
	sendFrame(t, conn, jpegFrame(t))

	time.Sleep(20 * time.Millisecond)
	if n := f.sessions.Sweep(time.Millisecond); n != 0 {
		t.Fatalf("Sweep() closed %d sessions, want 0", n)
	}

	record := sendFrame(t, conn, jpegFrame(t))
	if record["type"] != TypeResult || record["letter"] != "A" {
		t.Errorf("record after pause = %v", record)
	}
	if s, ok := f.sessions.Get("CA1"); !ok || s.Frames() != 2 {
		t.Error("expected the stream session to keep its history")
	}
}

func TestPreviewStream(t *testing.T) {
	preview := capture.NewPreview()
	srv := New(Config{Preview: preview})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	preview.Publish([]byte("jpeg-bytes"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %s", ct)
	}

	var body []byte
	buf := make([]byte, 256)
	for !bytes.Contains(body, []byte("jpeg-bytes")) {
		n, err := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if err != nil {
			break
		}
	}
	got := string(body)
	if !strings.Contains(got, "--frame") || !strings.Contains(got, "jpeg-bytes") {
		t.Errorf("body = %q", got)
	}
}
