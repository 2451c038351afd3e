package imgdec

func init() {
	RegisterFormat(JPEG, "jpeg", decodeJPEG, sizeJPEG)
	RegisterFormat(PNG, "png", decodePNG, sizePNG)
	RegisterFormat(GIF, "gif", decodeGIF, sizeGIF)
	RegisterFormat(WebP, "webp", decodeWebP, sizeWebP)
	RegisterFormat(BMP, "bmp", decodeBMP, sizeBMP)
}
