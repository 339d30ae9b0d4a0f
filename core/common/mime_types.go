package common

import "strings"

// imageMimeTypes 图片解析支持的格式
var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

// ImageMimeType 根据后缀返回图片 MIME 类型
func ImageMimeType(ext string) (string, bool) {
	m, ok := imageMimeTypes[strings.ToLower(ext)]
	return m, ok
}
