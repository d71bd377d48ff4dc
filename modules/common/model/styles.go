package model

// VisualStyles - 스타일 카탈로그 (첫 번째가 기본값)
var VisualStyles = []VisualStyle{
	{ID: "pixar", Name: "Pixar", Prompt: "in the iconic style of a Disney Pixar animation. Features vibrant colors, soft lighting, and detailed, expressive character design."},
	{ID: "ultra_realistic", Name: "Ultra-Realistic", Prompt: "award-winning ultra-realistic photography, photorealistic, 8k, hyperdetailed, insane detail, intricate details, octane render, unreal engine 5, masterpiece."},
	{ID: "fantasy", Name: "Fantasy", Prompt: "fantasy art, intricate, elegant, highly detailed, digital painting, artstation, concept art, smooth, sharp focus, illustration."},
	{ID: "creepy", Name: "Creepy", Prompt: "creepy, horror, dark, unsettling, eerie, atmospheric, moody lighting, macabre."},
	{ID: "comic", Name: "Comic", Prompt: "comic book style, graphic novel art, bold lines, vibrant colors, halftone dots, pop art."},
	{ID: "anime", Name: "Anime", Prompt: "anime style, vibrant, detailed, beautiful lighting, by Makoto Shinkai."},
	{ID: "3d_disney", Name: "3D Disney", Prompt: "3D Disney style, charming, whimsical, detailed character design, vibrant colors, magical atmosphere."},
	{ID: "cinematic", Name: "Cinematic", Prompt: "cinematic shot, epic composition, dramatic lighting, high detail, film grain."},
}

// StyleByID - id로 스타일 조회
func StyleByID(id string) (VisualStyle, bool) {
	for _, s := range VisualStyles {
		if s.ID == id {
			return s, true
		}
	}
	return VisualStyle{}, false
}
