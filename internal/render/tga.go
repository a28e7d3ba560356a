package render

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// decodeTGA decodes uncompressed and RLE true-color TGA files, plus
// uncompressed grayscale. TGA has no stdlib or x/image decoder.
func decodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, errors.New("tga: header truncated")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, errors.New("tga: color-mapped images unsupported")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("tga: bad dimensions %dx%d", width, height)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, errors.New("tga: id field truncated")
	}
	pixels := data[offset:]

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	put := func(index int, c color.RGBA) {
		x := index % width
		y := index / width
		if !topToBottom {
			y = height - 1 - y
		}
		img.SetRGBA(x, y, c)
	}

	switch imageType {
	case 2: // uncompressed true color
		if bpp != 24 && bpp != 32 {
			return nil, errors.Errorf("tga: %d bpp true color unsupported", bpp)
		}
		stride := bpp / 8
		if len(pixels) < width*height*stride {
			return nil, errors.New("tga: pixel data truncated")
		}
		for i := 0; i < width*height; i++ {
			put(i, readTGAPixel(pixels[i*stride:], stride))
		}
	case 3: // uncompressed grayscale
		if bpp != 8 {
			return nil, errors.Errorf("tga: %d bpp grayscale unsupported", bpp)
		}
		if len(pixels) < width*height {
			return nil, errors.New("tga: pixel data truncated")
		}
		for i := 0; i < width*height; i++ {
			v := pixels[i]
			put(i, color.RGBA{v, v, v, 255})
		}
	case 10: // RLE true color
		if bpp != 24 && bpp != 32 {
			return nil, errors.Errorf("tga: %d bpp RLE unsupported", bpp)
		}
		stride := bpp / 8
		total := width * height
		pi, di := 0, 0
		for pi < total {
			if di >= len(pixels) {
				return nil, errors.New("tga: rle stream truncated")
			}
			packet := pixels[di]
			di++
			count := int(packet&0x7F) + 1

			if packet&0x80 != 0 {
				if di+stride > len(pixels) {
					return nil, errors.New("tga: rle run truncated")
				}
				c := readTGAPixel(pixels[di:], stride)
				di += stride
				for i := 0; i < count && pi < total; i++ {
					put(pi, c)
					pi++
				}
			} else {
				for i := 0; i < count && pi < total; i++ {
					if di+stride > len(pixels) {
						return nil, errors.New("tga: raw run truncated")
					}
					put(pi, readTGAPixel(pixels[di:], stride))
					di += stride
					pi++
				}
			}
		}
	default:
		return nil, errors.Errorf("tga: image type %d unsupported", imageType)
	}

	return img, nil
}

// readTGAPixel reads one BGR(A) pixel.
func readTGAPixel(p []byte, stride int) color.RGBA {
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if stride == 4 {
		c.A = p[3]
	}
	return c
}
