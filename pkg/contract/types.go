package contract

import (
	"fmt"
	"strings"
)

// FileID: 地图集内的逻辑文件标识（规范化的相对路径）。
type FileID string

// Difficulty: 封闭枚举，仅五个已知难度。
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
	Expert
	ExpertPlus
)

var difficultyNames = [...]string{
	Easy:       "Easy",
	Normal:     "Normal",
	Hard:       "Hard",
	Expert:     "Expert",
	ExpertPlus: "ExpertPlus",
}

func (d Difficulty) String() string {
	if d < Easy || d > ExpertPlus {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// Exempt: Easy/Normal 不受 parity 规则约束（新手每次挥砍都会复位）。
func (d Difficulty) Exempt() bool { return d == Easy || d == Normal }

// ParseDifficulty 将 manifest 中的难度标签映射为枚举；大小写敏感。
// 未知标签返回 ErrUnknownDifficulty。
func ParseDifficulty(label string) (Difficulty, error) {
	for i, n := range difficultyNames {
		if n == label {
			return Difficulty(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, label)
}

// Severity: 诊断严重级别（边界处归一化为封闭集合）。
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// ParseSeverity 归一化协作方给出的自由字符串标签。
// 未识别的标签按 info 处理，ok=false 供调用方记录日志。
func ParseSeverity(tag string) (Severity, bool) {
	switch strings.TrimSpace(tag) {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}

// Diagnostic: 协作方上报的一条问题记录。
type Diagnostic struct {
	// NoteRef: 关联的 note/wall 对象（协作方原样给出，已导出为 Go 值）。
	NoteRef     any
	Parity      string
	Message     string
	Severity    Severity
	RawSeverity string
}

// DifficultyResult: 单个难度的评估汇总（仅内存）。
type DifficultyResult struct {
	FileID FileID
	// Characteristic/Difficulty: 所属特征组与难度。评分方只认识文件，
	// 由批处理在评估返回后填入。
	Characteristic string
	Difficulty     Difficulty
	Errors      int
	Warnings    int
	Diagnostics []Diagnostic
}

// Label 返回失败原因中使用的 "<特征组>:<难度>" 标签。
func (r DifficultyResult) Label() string {
	return r.Characteristic + ":" + r.Difficulty.String()
}

// Tally 按严重级别计数，生成 DifficultyResult。
func Tally(id FileID, diags []Diagnostic) DifficultyResult {
	res := DifficultyResult{FileID: id, Diagnostics: diags}
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			res.Errors++
		case SeverityWarning:
			res.Warnings++
		}
	}
	return res
}

// Verdict: 最终输出，形状固定为 {"failed":bool,"whyfailed":string}。
type Verdict struct {
	Failed    bool   `json:"failed"`
	WhyFailed string `json:"whyfailed"`
}
