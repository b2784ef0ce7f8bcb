package config

// Default configuration values.
const (
	// DefaultStrategy is the conflict strategy used when none is given.
	DefaultStrategy = "rename"

	// DefaultCategory is assigned to files no rule matches.
	DefaultCategory = "Other"
)

// DefaultCategories maps file extensions (without the dot, lower case) to
// category directory names. Overridable via the categories config section.
var DefaultCategories = map[string]string{
	"jpg": "Images", "jpeg": "Images", "png": "Images", "gif": "Images",
	"webp": "Images", "svg": "Images", "heic": "Images",

	"mp4": "Videos", "mkv": "Videos", "mov": "Videos", "avi": "Videos",
	"webm": "Videos",

	"mp3": "Audio", "flac": "Audio", "wav": "Audio", "ogg": "Audio",
	"m4a": "Audio",

	"pdf": "Documents", "doc": "Documents", "docx": "Documents",
	"txt": "Documents", "md": "Documents", "odt": "Documents",
	"xls": "Documents", "xlsx": "Documents", "ppt": "Documents",
	"pptx": "Documents", "csv": "Documents",

	"zip": "Archives", "tar": "Archives", "gz": "Archives",
	"bz2": "Archives", "xz": "Archives", "7z": "Archives", "rar": "Archives",

	"exe": "Programs", "msi": "Programs", "dmg": "Programs",
	"pkg": "Programs", "deb": "Programs", "rpm": "Programs",
	"appimage": "Programs",
}

// DefaultDateSubpathCategories lists categories whose files are filed into
// date subfolders derived from modification time.
var DefaultDateSubpathCategories = []string{"Images", "Videos"}
