package filter

import "sort"

// Presets are the built-in named extension groups.
var Presets = map[string][]string{
	"images":        {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp"},
	"documents":     {".doc", ".docx", ".pdf", ".txt", ".rtf", ".odt"},
	"spreadsheets":  {".xls", ".xlsx", ".csv", ".ods"},
	"presentations": {".ppt", ".pptx", ".odp"},
	"video":         {".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv"},
	"audio":         {".mp3", ".wav", ".flac", ".aac", ".ogg"},
	"archives":      {".zip", ".rar", ".7z", ".tar", ".gz"},
	"code":          {".py", ".js", ".html", ".css", ".java", ".cpp", ".c", ".go"},
}

// MergePresets returns the built-in presets overlaid with overrides.
// An override replaces a built-in group of the same name.
func MergePresets(overrides map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(Presets)+len(overrides))
	for name, exts := range Presets {
		merged[name] = exts
	}
	for name, exts := range overrides {
		normalized := make([]string, 0, len(exts))
		for _, e := range exts {
			if e = NormalizeExtension(e); e != "" {
				normalized = append(normalized, e)
			}
		}
		merged[name] = normalized
	}
	return merged
}

// PresetNames returns the names in presets, sorted.
func PresetNames(presets map[string][]string) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
