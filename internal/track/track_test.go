package track

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const figureEightJSON = `{
  "id": "figure-eight",
  "name": "Figure Eight",
  "checkpoints": [
    {"ring": [[-5, -5], [5, -5], [5, 5], [-5, 5]], "startFinish": true},
    {"ring": [[45, -5], [55, -5], [55, 5], [45, 5]]},
    {"ring": [[95, -5], [105, -5], [105, 5], [95, 5]]}
  ],
  "barriers": [
    [[-20, -20], [120, -20]],
    [[-20, 20], [120, 20]]
  ],
  "spawns": [
    {"position": [-10, -2], "heading": 0},
    {"position": [-10, 2], "heading": 0}
  ]
}`

func TestParse(t *testing.T) {
	tr, err := Parse([]byte(figureEightJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tr.ID != "figure-eight" {
		t.Errorf("ID = %q, want figure-eight", tr.ID)
	}
	if got := tr.CheckpointCount(); got != 3 {
		t.Errorf("CheckpointCount() = %d, want 3", got)
	}
	if tr.StartFinishIndex != 0 {
		t.Errorf("StartFinishIndex = %d, want 0", tr.StartFinishIndex)
	}
	if len(tr.Barriers) != 2 {
		t.Errorf("len(Barriers) = %d, want 2", len(tr.Barriers))
	}

	if !tr.Checkpoints[0].Contains(mgl64.Vec2{0, 0}) {
		t.Error("checkpoint 0 should contain origin")
	}
	if tr.Checkpoints[0].Contains(mgl64.Vec2{50, 0}) {
		t.Error("checkpoint 0 should not contain (50, 0)")
	}
	if !tr.Checkpoints[1].Contains(mgl64.Vec2{50, 0}) {
		t.Error("checkpoint 1 should contain (50, 0)")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{
			name: "no checkpoints",
			json: `{"id": "t", "spawns": [{"position": [0, 0], "heading": 0}]}`,
			want: ErrNoCheckpoints,
		},
		{
			name: "no start finish",
			json: `{"id": "t", "checkpoints": [{"ring": [[0,0],[1,0],[1,1]]}], "spawns": [{"position": [0, 0], "heading": 0}]}`,
			want: ErrNoStartFinish,
		},
		{
			name: "two start finish",
			json: `{"id": "t", "checkpoints": [
				{"ring": [[0,0],[1,0],[1,1]], "startFinish": true},
				{"ring": [[2,0],[3,0],[3,1]], "startFinish": true}
			], "spawns": [{"position": [0, 0], "heading": 0}]}`,
			want: ErrManyStarts,
		},
		{
			name: "no spawns",
			json: `{"id": "t", "checkpoints": [{"ring": [[0,0],[1,0],[1,1]], "startFinish": true}]}`,
			want: ErrNoSpawns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_MissingID(t *testing.T) {
	_, err := Parse([]byte(`{"checkpoints": [], "spawns": []}`))
	if err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestParse_WGS84(t *testing.T) {
	// Coordinates near Berlin; projection must land them in planar
	// meters with the same relative ordering.
	src := `{
	  "id": "gps-track",
	  "crs": "wgs84",
	  "checkpoints": [
	    {"ring": [[13.40, 52.52], [13.41, 52.52], [13.41, 52.53], [13.40, 52.53]], "startFinish": true}
	  ],
	  "spawns": [{"position": [13.405, 52.525], "heading": 0}]
	}`
	tr, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	spawn := tr.Spawns[0].Position
	if spawn.X() < 1_000_000 {
		t.Errorf("spawn x = %f, expected projected meters", spawn.X())
	}
	if !tr.Checkpoints[0].Contains(spawn) {
		t.Error("start/finish volume should contain the projected spawn")
	}
}

func TestSpawnFor_Cycles(t *testing.T) {
	tr, err := Parse([]byte(figureEightJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := tr.SpawnFor(0); got.Position != tr.Spawns[0].Position {
		t.Errorf("SpawnFor(0) = %v, want first spawn", got)
	}
	if got := tr.SpawnFor(2); got.Position != tr.Spawns[0].Position {
		t.Errorf("SpawnFor(2) = %v, want first spawn (cycled)", got)
	}
	if got := tr.SpawnFor(3); got.Position != tr.Spawns[1].Position {
		t.Errorf("SpawnFor(3) = %v, want second spawn (cycled)", got)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "figure-eight.json"), []byte(figureEightJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	tracks, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("len(tracks) = %d, want 1", len(tracks))
	}
	if _, ok := tracks["figure-eight"]; !ok {
		t.Error("expected figure-eight in loaded tracks")
	}
}

func TestLoadDir_BadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(dir); err == nil {
		t.Error("expected error for malformed track file")
	}
}
