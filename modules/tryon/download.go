package tryon

import "fitting-room-server/modules/common/utils"

const downloadBaseName = "virtual-try-on-result"

// DownloadName - virtual-try-on-result[-hd].<ext>
func DownloadName(r *Result) string {
	if r == nil {
		return ""
	}
	name := downloadBaseName
	if r.Upscaled {
		name += "-hd"
	}
	return name + "." + utils.ExtensionForMIME(r.Image.MIMEType)
}
