package archive

import (
	"sort"
	"strings"
)

// playbackOrder lists streamable audio formats, most stream-friendly
// first. VBR MP3 leads because every recording carries one and it seeks
// cleanly over HTTP; lossless formats follow for listeners who ask.
var playbackOrder = []string{
	"vbr mp3",
	"flac",
	"24bit flac",
	"320kbps mp3",
	"256kbps mp3",
	"192kbps mp3",
	"160kbps mp3",
	"128kbps mp3",
	"96kbps mp3",
	"64kbps mp3",
}

// qualityOrder ranks audio formats by fidelity for scoring and download
var qualityOrder = []string{
	"24bit flac",
	"flac",
	"shorten",
	"vbr mp3",
	"320kbps mp3",
	"256kbps mp3",
	"192kbps mp3",
	"160kbps mp3",
	"128kbps mp3",
	"96kbps mp3",
	"64kbps mp3",
}

// BestPlayableFiles selects the audio files of one streamable format,
// ordered by track. A preferred format is tried first; otherwise the
// default preference order decides. Nil when the item has no
// streamable audio.
func BestPlayableFiles(meta *ItemMetadata, preferredFormat string) []File {
	if meta == nil || len(meta.Files) == 0 {
		return nil
	}

	byFormat := groupByFormat(meta.Files)

	order := playbackOrder
	if pref := strings.ToLower(strings.TrimSpace(preferredFormat)); pref != "" {
		order = append([]string{pref}, playbackOrder...)
	}

	for _, format := range order {
		files, ok := byFormat[format]
		if !ok {
			continue
		}
		sortByTrack(files)
		return files
	}

	return nil
}

// FilesForFormat returns the item's files of one exact format, by track
func FilesForFormat(meta *ItemMetadata, format string) []File {
	if meta == nil {
		return nil
	}

	files := groupByFormat(meta.Files)[strings.ToLower(strings.TrimSpace(format))]
	sortByTrack(files)
	return files
}

// BestAudioFormat reports the highest-fidelity audio format present on
// an item, in the item's own spelling. "" when no ranked audio exists.
func BestAudioFormat(meta *ItemMetadata) string {
	if meta == nil {
		return ""
	}

	byFormat := groupByFormat(meta.Files)

	for _, format := range qualityOrder {
		files, ok := byFormat[format]
		if ok && len(files) > 0 {
			return files[0].Format
		}
	}

	return ""
}

func groupByFormat(files []File) map[string][]File {
	byFormat := make(map[string][]File)
	for _, f := range files {
		key := strings.ToLower(strings.TrimSpace(f.Format))
		if key == "" {
			continue
		}
		byFormat[key] = append(byFormat[key], f)
	}
	return byFormat
}

func sortByTrack(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		ti, tj := files[i].TrackNumber(), files[j].TrackNumber()
		if ti != tj {
			return ti < tj
		}
		return files[i].Name < files[j].Name
	})
}
