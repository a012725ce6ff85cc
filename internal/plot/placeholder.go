/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package plot

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	placeholderBg   = color.RGBA{R: 248, G: 248, B: 248, A: 255}
	placeholderText = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// Placeholder returns a blank canvas of w x h with text centered on it.
func Placeholder(w, h int, text string) image.Image {
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBg), image.Point{}, draw.Src)
	if text == "" {
		return img
	}
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(placeholderText), Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := (w - tw) / 2
	if x < 4 {
		x = 4
	}
	y := h/2 + face.Metrics().Ascent.Ceil()/2
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return img
}
