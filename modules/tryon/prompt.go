package tryon

// TryOnPrompt - instruction sent after the person and outfit images
const TryOnPrompt = "You are an expert virtual stylist. Your task is to take the clothing item from the second image and realistically place it onto the person in the first image. Preserve the person's original pose, body shape, and the background of the first image as accurately as possible. The final output must be only the resulting image, with no added text or explanations."

// UpscalePrompt - instruction sent after the image to enhance
const UpscalePrompt = "Upscale this image to a higher resolution. Enhance details and clarity without altering the content, style, or composition. The output must be only the upscaled image."
