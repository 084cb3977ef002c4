package contract

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	wpath := filepath.Join("a", "b", "c")
	basicCases := map[string]string{
		wpath:      "a/b/c",
		"./x/../y": "y",
		"":         ".",
	}
	for in, want := range basicCases {
		got := NormalizeFileID(in)
		if string(got) != want {
			t.Fatalf("基础测试 %s -> %s, 预期 %s", in, got, want)
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Windows路径", "Maps\\ExpertPlusStandard.dat", "Maps/ExpertPlusStandard.dat"},
		{"清理多余斜杠", "path//to///file.dat", "path/to/file.dat"},
		{"清理当前目录", "./ExpertStandard.dat", "ExpertStandard.dat"},
		{"处理父目录", "a/../HardStandard.dat", "HardStandard.dat"},
		{"混合分隔符", "C:\\Users/test\\map.dat", "C:/Users/test/map.dat"},
		{"仅分隔符", "\\\\\\///", "/"},
		{"复杂父目录", "a\\b\\..\\..\\..\\d", "../d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFileID(tt.input); string(got) != tt.expected {
				t.Errorf("NormalizeFileID(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMapFileID(t *testing.T) {
	ok := map[string]string{
		"ExpertStandard.dat":      "ExpertStandard.dat",
		"sub\\HardLawless.dat":    "sub/HardLawless.dat",
		"./sub/../Normal.dat":     "Normal.dat",
	}
	for in, want := range ok {
		got, err := MapFileID(in)
		if err != nil || string(got) != want {
			t.Fatalf("MapFileID(%q) = %q, %v; 预期 %q", in, got, err, want)
		}
	}
	bad := []string{"", "  ", "/etc/passwd", "C:\\x.dat", "../x.dat", "a/../../x.dat", "."}
	for _, in := range bad {
		if _, err := MapFileID(in); !errors.Is(err, ErrPathInvalid) {
			t.Fatalf("MapFileID(%q) 应返回 ErrPathInvalid, got %v", in, err)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	for _, d := range []Difficulty{Easy, Normal, Hard, Expert, ExpertPlus} {
		got, err := ParseDifficulty(d.String())
		if err != nil || got != d {
			t.Fatalf("round trip %v: got %v err %v", d, got, err)
		}
	}
	for _, label := range []string{"Unknown", "expert", "Expert+", ""} {
		if _, err := ParseDifficulty(label); !errors.Is(err, ErrUnknownDifficulty) {
			t.Fatalf("%q 应返回 ErrUnknownDifficulty, got %v", label, err)
		}
	}
	if !Easy.Exempt() || !Normal.Exempt() || Hard.Exempt() || Expert.Exempt() || ExpertPlus.Exempt() {
		t.Fatalf("豁免集合应仅为 Easy/Normal")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		tag  string
		want Severity
		ok   bool
	}{
		{"error", SeverityError, true},
		{"warning", SeverityWarning, true},
		{"info", SeverityInfo, true},
		{"", SeverityInfo, false},
		{"hint", SeverityInfo, false},
		{"Error", SeverityInfo, false},
	}
	for _, c := range cases {
		got, ok := ParseSeverity(c.tag)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseSeverity(%q) = %v,%v 预期 %v,%v", c.tag, got, ok, c.want, c.ok)
		}
	}
}

func TestTally(t *testing.T) {
	diags := []Diagnostic{
		{Severity: SeverityError},
		{Severity: SeverityWarning},
		{Severity: SeverityWarning},
		{Severity: SeverityInfo, RawSeverity: "hint"},
	}
	res := Tally("x.dat", diags)
	if res.Errors != 1 || res.Warnings != 2 || len(res.Diagnostics) != 4 || res.FileID != "x.dat" {
		t.Fatalf("计数错误: %+v", res)
	}
}

func TestDifficultyResultLabel(t *testing.T) {
	res := Tally("x.dat", nil)
	res.Characteristic, res.Difficulty = "OneSaber", ExpertPlus
	if got := res.Label(); got != "OneSaber:ExpertPlus" {
		t.Fatalf("Label() = %q", got)
	}
}

const sampleInfo = `{
  "_version": "2.0.0",
  "_songName": "x",
  "_difficultyBeatmapSets": [
    {"_beatmapCharacteristicName": "Standard", "_difficultyBeatmaps": [
      {"_difficulty": "Hard", "_difficultyRank": 5, "_beatmapFilename": "HardStandard.dat"},
      {"_difficulty": "Expert", "_beatmapFilename": "ExpertStandard.dat"}
    ]},
    {"_beatmapCharacteristicName": "OneSaber", "_difficultyBeatmaps": []}
  ]
}`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleInfo))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(m.Sets) != 2 || m.Sets[0].Name != "Standard" || len(m.Sets[0].Difficulties) != 2 {
		t.Fatalf("结构错误: %+v", m)
	}
	if e := m.Sets[0].Difficulties[1]; e.Label != "Expert" || e.Filename != "ExpertStandard.dat" {
		t.Fatalf("顺序或字段错误: %+v", e)
	}
	// 末尾空白不算多余数据
	if _, err := ParseManifest(strings.NewReader(sampleInfo + "\n\r\n  ")); err != nil {
		t.Fatalf("末尾空白不应报错: %v", err)
	}
}

func TestParseManifestErrors(t *testing.T) {
	cases := map[string]string{
		"非法 JSON":   `{"_difficultyBeatmapSets": [`,
		"缺少 sets":   `{"_songName": "x"}`,
		"缺少名称":      `{"_difficultyBeatmapSets": [{"_difficultyBeatmaps": []}]}`,
		"缺少 beatmaps": `{"_difficultyBeatmapSets": [{"_beatmapCharacteristicName": "Standard"}]}`,
		"缺少文件名":     `{"_difficultyBeatmapSets": [{"_beatmapCharacteristicName": "Standard", "_difficultyBeatmaps": [{"_difficulty": "Hard"}]}]}`,
		"尾随垃圾":      `{"_difficultyBeatmapSets": []} garbage`,
		"尾随第二个对象":   `{"_difficultyBeatmapSets": []}{"x": 1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseManifest(strings.NewReader(raw)); !errors.Is(err, ErrManifestParse) {
				t.Fatalf("want ErrManifestParse got %v", err)
			}
		})
	}
}

func TestStatMap(t *testing.T) {
	v2 := []byte(`{"_version":"2.2.0","_notes":[{"_time":1},{"_time":2}],"_obstacles":[{"_time":1}]}`)
	st, err := StatMap(v2)
	if err != nil || st.Notes != 2 || st.Walls != 1 || st.Version != "2.2.0" {
		t.Fatalf("v2: %+v %v", st, err)
	}
	v3 := []byte(`{"version":"3.0.0","colorNotes":[{"b":1}],"obstacles":[]}`)
	st, err = StatMap(v3)
	if err != nil || st.Notes != 1 || st.Walls != 0 {
		t.Fatalf("v3: %+v %v", st, err)
	}
	for _, bad := range []string{`{"_notes": [`, `[1,2]`, `"str"`, ``} {
		if _, err := StatMap([]byte(bad)); !errors.Is(err, ErrMapParse) {
			t.Fatalf("%q 应返回 ErrMapParse, got %v", bad, err)
		}
	}
}
